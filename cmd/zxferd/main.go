// Command zxferd is the zxfer demo entry point: a pflag-driven CLI with
// two subcommands, "diff" and "serve", following the teacher's
// MainInit/MainLoop split (tdns/main_initfuncs.go) scaled down to a
// single-zone, single-changeset demo rather than a long-running
// multi-zone daemon.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/goutil/dump"
	"github.com/miekg/dns"
	"github.com/spf13/pflag"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/internal/config"
	"github.com/tornvall/zxfer/internal/logging"
	"github.com/tornvall/zxfer/internal/metrics"
	"github.com/tornvall/zxfer/internal/msgpool"
	"github.com/tornvall/zxfer/ixfrout"
	"github.com/tornvall/zxfer/ixfrout/policy"
	"github.com/tornvall/zxfer/xfrproto"
	"github.com/tornvall/zxfer/zone"
	"github.com/tornvall/zxfer/zonediff"
)

// globals mirrors the teacher's Globals.Debug/Globals.Verbose pair
// (tdns/global.go), kept here rather than as a package-level struct
// since zxferd has no other global state to bundle it with.
var globals struct {
	cfgFile string
	debug   bool
	verbose bool
}

func main() {
	pflag.StringVar(&globals.cfgFile, "config", "/etc/zxfer/zxferd.yaml", "config file path")
	pflag.BoolVarP(&globals.debug, "debug", "", false, "run in debug mode")
	pflag.BoolVarP(&globals.verbose, "verbose", "v", false, "verbose mode")
	pflag.Parse()

	logging.SetupCLI()

	args := pflag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "diff":
		err = runDiff(args[1:])
	case "serve":
		err = runServe(args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "zxferd: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: zxferd [--config file] [--verbose] [--debug] <command> ...")
	fmt.Fprintln(os.Stderr, "  diff  <zone> <old-zonefile> <new-zonefile>")
	fmt.Fprintln(os.Stderr, "  serve <zone> <old-zonefile> <new-zonefile> <listen-addr>")
}

// runDiff loads a before/after pair of zone files for zone and prints the
// changeset between them, the way a zone operator would sanity-check a
// differ's output before trusting it in production.
func runDiff(args []string) error {
	if len(args) != 3 {
		usage()
		return xfrproto.InvalidArgf("zxferd.diff", "expected <zone> <old-zonefile> <new-zonefile>")
	}
	zoneName, oldPath, newPath := args[0], args[1], args[2]

	oldContents, err := zone.LoadFile(zoneName, oldPath)
	if err != nil {
		return err
	}
	newContents, err := zone.LoadFile(zoneName, newPath)
	if err != nil {
		return err
	}

	cs, err := zonediff.Diff(oldContents.SoaRRset(), newContents.SoaRRset(),
		oldContents.Main, newContents.Main, oldContents.NSEC3, newContents.NSEC3)
	if err != nil {
		return err
	}

	dump.P(cs)
	return nil
}

// runServe loads a before/after pair of zone files, diffs them into a
// single changeset, and serves that one changeset over IXFR on
// listenAddr (both udp and tcp) so it can be exercised manually with
// `dig @host -p port ixfr=<old-serial> zone`. AXFR queries are accepted
// by the handler but answered FORMERR, since ixfrout.ValidateRequest
// admits only IXFR.
func runServe(args []string) error {
	if len(args) != 4 {
		usage()
		return xfrproto.InvalidArgf("zxferd.serve", "expected <zone> <old-zonefile> <new-zonefile> <listen-addr>")
	}
	zoneName, oldPath, newPath, addr := args[0], args[1], args[2], args[3]

	if globals.cfgFile != "" {
		if _, err := os.Stat(globals.cfgFile); err == nil {
			cfg, err := config.Load(globals.cfgFile)
			if err != nil {
				return err
			}
			logging.Setup(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays)
			if cfg.Metrics.Enabled {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				go http.ListenAndServe(cfg.Metrics.Address, mux)
			}
		}
	}

	oldContents, err := zone.LoadFile(zoneName, oldPath)
	if err != nil {
		return err
	}
	newContents, err := zone.LoadFile(zoneName, newPath)
	if err != nil {
		return err
	}
	cs, err := zonediff.Diff(oldContents.SoaRRset(), newContents.SoaRRset(),
		oldContents.Main, newContents.Main, oldContents.NSEC3, newContents.NSEC3)
	if err != nil {
		return err
	}

	seq := changeset.NewSequence()
	if err := seq.Append(cs); err != nil {
		return err
	}

	cookies, err := policy.NewCookieManager()
	if err != nil {
		return err
	}
	authz := &policy.Authorizer{ACL: policy.NewACL(), Cookies: cookies}
	authz.ACL.AllowAll(zoneName)

	mgr := ixfrout.NewManager()
	dns.HandleFunc(".", transferHandler(zoneName, seq, authz, mgr))

	udpSrv := &dns.Server{Addr: addr, Net: "udp"}
	tcpSrv := &dns.Server{Addr: addr, Net: "tcp"}

	errCh := make(chan error, 2)
	go func() { errCh <- udpSrv.ListenAndServe() }()
	go func() { errCh <- tcpSrv.ListenAndServe() }()

	fmt.Printf("zxferd: serving zone %q (serial %d -> %d) on %s (udp+tcp)\n",
		zoneName, cs.SerialFrom, cs.SerialTo, addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		fmt.Printf("zxferd: %s received, shutting down\n", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	udpSrv.ShutdownContext(ctx)
	tcpSrv.ShutdownContext(ctx)
	return nil
}

// transferHandler dispatches IXFR and AXFR queries for zoneName to
// serveTransfer (which answers AXFR with FORMERR and IXFR from the single
// changeset in seq), refusing anything else -- this demo server has no
// other zone data to answer from. Grounded on the teacher's
// ApexResponder dispatch (tdns/queryresponder.go), narrowed to the one
// case this command exists to demonstrate.
func transferHandler(zoneName string, seq *changeset.Sequence, authz *policy.Authorizer, mgr *ixfrout.Manager) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		defer w.Close()

		if len(r.Question) != 1 {
			refuse(w, r, dns.RcodeFormatError)
			return
		}
		q := r.Question[0]

		switch q.Qtype {
		case dns.TypeIXFR, dns.TypeAXFR:
			serveTransfer(w, r, zoneName, seq, authz, mgr)
		default:
			refuse(w, r, dns.RcodeRefused)
		}
	}
}

func serveTransfer(w dns.ResponseWriter, r *dns.Msg, zoneName string, seq *changeset.Sequence, authz *policy.Authorizer, mgr *ixfrout.Manager) {
	start := time.Now()
	remote := remoteIP(w.RemoteAddr())

	if err := authz.Authorize(remote, zoneName); err != nil {
		refuse(w, r, dns.RcodeRefused)
		metrics.TransfersOutTotal.WithLabelValues(zoneName, "denied").Inc()
		return
	}

	if cookie, present := policy.ExtractCookie(r); present {
		if ok, fresh := authz.AuthorizeCookie(remote, cookie); !ok {
			m := new(dns.Msg)
			m.SetRcode(r, dns.RcodeBadCookie)
			policy.AttachServerCookie(m, cookie.Client, fresh)
			w.WriteMsg(m)
			metrics.TransfersOutTotal.WithLabelValues(zoneName, "badcookie").Inc()
			return
		}
	}

	clientSerial, err := ixfrout.ValidateRequest(zoneName, r)
	if err != nil {
		refuse(w, r, dns.RcodeFormatError)
		metrics.TransfersOutTotal.WithLabelValues(zoneName, "malformed").Inc()
		return
	}

	if xfrproto.SerialCompare(clientSerial, seq.LastSerial()) >= 0 {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Authoritative = true
		m.Answer = []dns.RR{dns.Copy(seq.Changesets[len(seq.Changesets)-1].SoaTo.RRs[0])}
		w.WriteMsg(m)
		metrics.TransfersOutTotal.WithLabelValues(zoneName, "uptodate").Inc()
		return
	}

	session, err := ixfrout.NewSession(zoneName, seq, 100)
	if err != nil {
		refuse(w, r, dns.RcodeServerFailure)
		metrics.TransfersOutTotal.WithLabelValues(zoneName, "fail").Inc()
		return
	}

	sessionID := fmt.Sprintf("%s/%s/%d", zoneName, remote, r.Id)
	mgr.Start(sessionID, session)
	defer mgr.Finish(sessionID)

	for {
		msg := msgpool.Get()
		msg.SetReply(r)
		msg.Authoritative = true

		result, err := session.Step(msg)
		if err != nil {
			msgpool.Put(msg)
			metrics.TransfersOutTotal.WithLabelValues(zoneName, "fail").Inc()
			return
		}

		if err := w.WriteMsg(msg); err != nil {
			msgpool.Put(msg)
			metrics.TransfersOutTotal.WithLabelValues(zoneName, "fail").Inc()
			return
		}
		session.RecordPacketSent()
		metrics.RecordsTransferred.WithLabelValues(zoneName, "out").Add(float64(len(msg.Answer)))
		msgpool.Put(msg)

		if result == xfrproto.ProcDone {
			break
		}
	}

	metrics.TransfersOutTotal.WithLabelValues(zoneName, "done").Inc()
	metrics.TransferDuration.WithLabelValues(zoneName, "out").Observe(time.Since(start).Seconds())
	metrics.ZoneSerial.WithLabelValues(zoneName).Set(float64(seq.LastSerial()))
}

func refuse(w dns.ResponseWriter, r *dns.Msg, rcode int) {
	m := new(dns.Msg)
	m.SetRcode(r, rcode)
	w.WriteMsg(m)
}

func remoteIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	default:
		return net.IPv4zero
	}
}
