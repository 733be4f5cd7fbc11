// Command udtdemo wires two udt.Interfaces together over loopback UDP,
// exchanges one active message end to end, and serves the resulting
// interface/endpoint metrics on /metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/archfabric/ugni-core/pkg/udt"
	"github.com/archfabric/ugni-core/pkg/udt/udpprovider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

func main() {
	hostname, err := os.Hostname()
	if err != nil {
		logrus.Fatalf("hostname: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logrus.StandardLogger()
	cfg := udt.Config{SegSize: 256, MaxAM: 16, MaxBufs: 64}

	serverProvider, err := udpprovider.New(":0", cfg.RxHeadroom, log)
	if err != nil {
		logrus.Fatalf("server provider: %v", err)
	}
	clientProvider, err := udpprovider.New(":0", cfg.RxHeadroom, log)
	if err != nil {
		logrus.Fatalf("client provider: %v", err)
	}

	serverIface, err := udt.NewInterface(ctx, serverProvider, serverProvider.LocalAddr(), cfg, log)
	if err != nil {
		logrus.Fatalf("server interface: %v", err)
	}
	clientIface, err := udt.NewInterface(ctx, clientProvider, clientProvider.LocalAddr(), cfg, log)
	if err != nil {
		logrus.Fatalf("client interface: %v", err)
	}

	replyCh := make(chan string, 1)
	serverIface.SetAMHandler(1, udt.CBAsync, func(rd *udt.RecvDescriptor) error {
		replyCh <- fmt.Sprintf("server received am_id=%d payload=%q", rd.AMID, rd.Payload)
		return nil
	})

	serverIface.StartAsyncTimer(ctx)
	clientIface.StartAsyncTimer(ctx)

	serverCollector := udt.NewCollector(serverIface, prometheus.Labels{
		"app": "udtdemo", "hostname": hostname, "role": "server",
	})
	clientCollector := udt.NewCollector(clientIface, prometheus.Labels{
		"app": "udtdemo", "hostname": hostname, "role": "client",
	})
	prometheus.MustRegister(serverCollector, clientCollector)

	peer := clientIface.NewEndpoint(serverProvider.LocalAddr())
	id := xid.New()
	if err := peer.AMShort(ctx, 1, 0, []byte(id.String())); err != nil {
		logrus.Fatalf("am_short: %v", err)
	}

	select {
	case msg := <-replyCh:
		logrus.Info(msg)
	case <-time.After(2 * time.Second):
		logrus.Warn("udtdemo: timed out waiting for active message delivery")
	}

	http.Handle("/metrics", promhttp.Handler())
	logrus.Info("udtdemo: serving /metrics on :18082")
	if err := http.ListenAndServe(":18082", nil); err != nil {
		logrus.Fatalf("serve: %v", err)
	}
}
