package ixfrout

import (
	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/dnsname"
	"github.com/tornvall/zxfer/xfrproto"
)

// ValidateRequest runs the checks knot-dns's ixfr_query_check performs
// before a transfer-out session is allowed to start: the query must
// carry exactly one question of the expected zone and type IXFR, and a
// SOA record in the authority section (the client's current serial)
// whose owner matches the question name.
//
// zone is the zone name being served (as resolved by the caller's zone
// lookup, already confirmed authoritative); req is the incoming query.
// On success, returns the client's claimed serial from the authority SOA.
func ValidateRequest(zone string, req *dns.Msg) (clientSerial uint32, err error) {
	if req == nil || len(req.Question) != 1 {
		return 0, xfrproto.Malformedf("ixfrout.ValidateRequest", "expected exactly one question")
	}
	q := req.Question[0]
	if q.Qtype != dns.TypeIXFR {
		return 0, xfrproto.Malformedf("ixfrout.ValidateRequest", "expected qtype IXFR, got %s", dns.TypeToString[q.Qtype])
	}
	if !dnsname.IsSubdomain(q.Name, zone) || dnsname.LookupKey(q.Name) != dnsname.LookupKey(zone) {
		return 0, xfrproto.Malformedf("ixfrout.ValidateRequest", "question name %q does not match zone %q", q.Name, zone)
	}

	if len(req.Ns) != 1 {
		return 0, xfrproto.Malformedf("ixfrout.ValidateRequest", "expected exactly one record in the authority section")
	}
	soa, ok := req.Ns[0].(*dns.SOA)
	if !ok {
		return 0, xfrproto.Malformedf("ixfrout.ValidateRequest", "authority record is not a SOA")
	}
	if dnsname.LookupKey(soa.Hdr.Name) != dnsname.LookupKey(zone) {
		return 0, xfrproto.Malformedf("ixfrout.ValidateRequest", "authority SOA owner %q does not match zone %q", soa.Hdr.Name, zone)
	}

	return soa.Serial, nil
}
