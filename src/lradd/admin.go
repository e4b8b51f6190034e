package lradd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.brendoncarroll.net/stdctx/logctx"
)

// StatusRes is the admin API's status document.
type StatusRes struct {
	LocalID       string     `json:"local_id"`
	ListenAddr    string     `json:"listen_addr"`
	AdvertiseAddr string     `json:"advertise_addr"`
	IDBits        int        `json:"id_bits"`
	K             int        `json:"k"`
	Alpha         int        `json:"alpha"`
	ValueCount    int        `json:"value_count"`
	Peers         []PeerInfo `json:"peers"`
}

type PeerInfo struct {
	ID       string        `json:"id"`
	Addr     string        `json:"addr"`
	RTT      time.Duration `json:"rtt_ns"`
	LastSeen string        `json:"last_seen"`
}

// runAPIServer serves the admin HTTP API at endpoint: health check,
// prometheus metrics, and node status.
func (d *Daemon) runAPIServer(ctx context.Context, endpoint string, pgath prometheus.Gatherer) error {
	l, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	defer l.Close()

	hSrv := http.Server{
		Handler:     d.apiMux(pgath),
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	go func() {
		logctx.Infof(ctx, "admin API listening on %v", l.Addr())
		if err := hSrv.Serve(l); err != nil && err != http.ErrServerClosed {
			logctx.Errorf(ctx, "error serving http: %v", err)
		}
	}()
	<-ctx.Done()
	return hSrv.Shutdown(context.Background())
}

func (d *Daemon) apiMux(pgath prometheus.Gatherer) http.Handler {
	mux := chi.NewMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("lrad\n"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(pgath, promhttp.HandlerOpts{}))
	mux.Get("/v1/status", d.handleStatus)
	return mux
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.status()); err != nil {
		logctx.Errorf(r.Context(), "encoding status: %v", err)
	}
}

func (d *Daemon) status() StatusRes {
	node := d.node
	res := StatusRes{
		LocalID:       node.LocalID().String(),
		ListenAddr:    d.params.Listen,
		AdvertiseAddr: d.params.AdvertiseAddr,
		IDBits:        node.Size().Bits(),
		K:             node.K(),
		Alpha:         node.Alpha(),
		ValueCount:    node.ValueCount(),
		Peers:         []PeerInfo{},
	}
	for _, ps := range node.Peers() {
		res.Peers = append(res.Peers, PeerInfo{
			ID:       ps.Contact.ID.String(),
			Addr:     ps.Contact.Addr,
			RTT:      ps.Contact.RTT,
			LastSeen: ps.LastSeen.GoTime().UTC().Format(time.RFC3339Nano),
		})
	}
	return res
}
