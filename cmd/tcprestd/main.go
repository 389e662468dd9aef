// Command tcprestd is a demo TcpRest server: it wires demo resources,
// security, and compression into a tcprest.Server and serves it over TCP or
// a Unix-domain socket, optionally also over UDP, until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/liweinan/tcprest"
	"github.com/liweinan/tcprest/tcprest/transport"
)

var log *logging.Logger

func main() {
	log = tcprest.SetupLogging("tcprestd", logging.INFO, false)

	app := cli.NewApp()
	app.Name = "tcprestd"
	app.Usage = "serve demo TcpRest resources over TCP or a Unix socket, optionally also UDP"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "addr", Value: "127.0.0.1:7171", Usage: "TCP address to listen on"},
		cli.StringFlag{Name: "socket", Value: "", Usage: "Unix socket path to listen on instead of TCP"},
		cli.StringFlag{Name: "udp", Value: "", Usage: "UDP address to additionally listen on"},
		cli.BoolFlag{Name: "v1-only", Usage: "accept only legacy V1 frames"},
		cli.BoolFlag{Name: "v2-only", Usage: "accept only V2 frames"},
		cli.BoolFlag{Name: "checksum", Usage: "require a CRC32 checksum trailer on every frame"},
		cli.BoolFlag{Name: "gzip", Usage: "enable the compression envelope"},
		cli.BoolFlag{Name: "strict", Usage: "reject resources with unsupported method types"},
	}
	app.Action = runServer

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%s", err)
	}
}

func runServer(c *cli.Context) error {
	opts := []tcprest.ServerOption{
		tcprest.WithProtocolVersion(protocolModeFromFlags(c)),
		tcprest.WithStrictTypeCheck(c.Bool("strict")),
		tcprest.WithCompressionConfig(tcprest.CompressionConfig{
			Enabled:              c.Bool("gzip"),
			ThresholdBytes:       1024,
			MaxDecompressedBytes: 8 << 20,
		}),
	}
	if c.Bool("checksum") {
		opts = append(opts, tcprest.WithSecurityConfig(tcprest.SecurityConfig{Checksum: tcprest.ChecksumCRC32}))
	}

	cleanup, opts, err := acceptorsFromFlags(c, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	server := tcprest.NewServer(opts...)
	registerDemoResources(server)

	server.Up()
	fmt.Println(Green("tcprestd ▶ up"))
	log.Notice("tcprestd up")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Println(Yellow("tcprestd ▶ shutting down"))
	server.Down()
	return nil
}

func protocolModeFromFlags(c *cli.Context) tcprest.ProtocolMode {
	switch {
	case c.Bool("v1-only"):
		return tcprest.ProtocolV1Only
	case c.Bool("v2-only"):
		return tcprest.ProtocolV2Only
	default:
		return tcprest.ProtocolAuto
	}
}

func acceptorsFromFlags(c *cli.Context, opts []tcprest.ServerOption) (func(), []tcprest.ServerOption, error) {
	cleanup := func() {}
	if socketPath := c.String("socket"); socketPath != "" {
		l, err := transport.ListenUnix(socketPath)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { os.Remove(socketPath) }
		log.Notice("listening on " + socketPath)
		opts = append(opts, tcprest.WithAcceptor(transport.NewStreamAcceptor(l)))
	} else {
		l, err := transport.ListenTCP(c.String("addr"))
		if err != nil {
			return nil, nil, err
		}
		log.Notice("listening on " + l.Addr().String())
		opts = append(opts, tcprest.WithAcceptor(transport.NewStreamAcceptor(l)))
	}
	if udpAddr := c.String("udp"); udpAddr != "" {
		conn, err := transport.ListenUDP(udpAddr)
		if err != nil {
			return nil, nil, err
		}
		log.Notice("listening on udp " + conn.LocalAddr().String())
		opts = append(opts, tcprest.WithAcceptor(transport.NewDatagramAcceptor(conn, 0)))
	}
	return cleanup, opts, nil
}
