package zone

import (
	"io"
	"os"

	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/dnsname"
	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
	"github.com/tornvall/zxfer/zonetree"
)

// LoadFile reads a zone master file from path and returns it as Contents.
// Grounded on the teacher's ReadZoneData/ParseZoneFromReader
// (tdns/dnsutils.go), which drive miekg/dns's own zone parser rather than
// hand-rolling presentation-format parsing.
func LoadFile(name, path string) (*Contents, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xfrproto.IOErrorf("zone.LoadFile", err, "opening %s", path)
	}
	defer f.Close()
	return Parse(name, f, path)
}

// Parse reads zone master-file content from r, attributing parse errors
// to origin for diagnostics. Nodes are gathered in a map keyed by lookup
// form and loaded into the tree in one bulk Rebuild, the way the
// teacher's ComputeIndices does after a full zone read (tdns/dnsutils.go)
// rather than one binary-search insert per record.
func Parse(name string, r io.Reader, origin string) (*Contents, error) {
	apexOwner := dns.Fqdn(name)
	nodes := map[string]*zonetree.Node{dnsname.LookupKey(apexOwner): zonetree.NewNode(apexOwner)}

	zp := dns.NewZoneParser(r, apexOwner, origin)
	zp.SetIncludeAllowed(false)

	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		h := rr.Header()
		key := dnsname.LookupKey(h.Name)
		node, found := nodes[key]
		if !found {
			node = zonetree.NewNode(h.Name)
			nodes[key] = node
		}
		rs := node.RRset(h.Rrtype)
		if rs.IsEmpty() {
			rs = rrset.New(h.Name, h.Rrtype, h.Class)
		}
		rs.RRs = append(rs.RRs, rr)
		node.SetRRset(rs)
	}
	if err := zp.Err(); err != nil {
		return nil, xfrproto.Malformedf("zone.Parse", "parsing %s: %v", origin, err)
	}

	addMissingAncestors(nodes, apexOwner)
	linkParents(nodes, apexOwner)

	main := zonetree.New()
	list := make([]*zonetree.Node, 0, len(nodes))
	for _, n := range nodes {
		list = append(list, n)
	}
	main.Rebuild(list)

	apex := nodes[dnsname.LookupKey(apexOwner)]
	contents := &Contents{Name: apexOwner, Main: main, Apex: apex}

	soa := contents.SoaRRset()
	if soa.IsEmpty() {
		return nil, xfrproto.Malformedf("zone.Parse", "%s: zone has no apex SOA", origin)
	}
	contents.SetSerial(soa.RRs[0].(*dns.SOA).Serial)
	return contents, nil
}

// addMissingAncestors inserts an empty node for every owner name between
// a loaded node and the apex that the zone file itself never names
// directly -- the empty-non-terminal case spec.md §3 describes.
func addMissingAncestors(nodes map[string]*zonetree.Node, apexOwner string) {
	apexKey := dnsname.LookupKey(apexOwner)
	for _, n := range namesSnapshot(nodes) {
		owner := nodes[n].Owner
		for {
			if dnsname.LookupKey(owner) == apexKey {
				break
			}
			parentOwner, ok := dnsname.ParentOf(owner)
			if !ok {
				break
			}
			parentKey := dnsname.LookupKey(parentOwner)
			if _, exists := nodes[parentKey]; !exists {
				nodes[parentKey] = zonetree.NewNode(parentOwner)
			}
			owner = parentOwner
		}
	}
}

func namesSnapshot(nodes map[string]*zonetree.Node) []string {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	return keys
}

// linkParents wires Node.Parent/Children for every node now present in
// the map, including the empty-non-terminal ancestors addMissingAncestors
// just added.
func linkParents(nodes map[string]*zonetree.Node, apexOwner string) {
	apexKey := dnsname.LookupKey(apexOwner)
	for key, node := range nodes {
		if key == apexKey {
			continue
		}
		parentOwner, ok := dnsname.ParentOf(node.Owner)
		if !ok {
			continue
		}
		parent, ok := nodes[dnsname.LookupKey(parentOwner)]
		if !ok {
			continue
		}
		node.Parent = parent
		parent.Children++
		if dnsname.IsWildcard(node.Owner) {
			parent.Flags |= zonetree.HasWildcardChild
		}
	}
}
