// kms-lease-server grants DRM leases over a Unix socket using the wire
// protocol in internal/drm: a client sends a width/height request and
// receives a lease fd via SCM_RIGHTS, plus the connector name the lease
// covers. The connection back to the client is the liveness signal — when
// it closes, the lease is revoked and the connector freed.
//
// This adapts the teacher's helix-drm-manager, replacing its
// QEMU-virtual-scanout bookkeeping with real enumeration and encoder/CRTC/
// plane assignment over internal/kms (the same assignment scheme
// internal/renderer/assignment.go uses for in-process connectors).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/crznic/kmscore/internal/drm"
	"github.com/crznic/kmscore/internal/kms"
)

type grant struct {
	connectorID uint32
	lesseeID    uint32
}

type server struct {
	logger *slog.Logger
	dev    *kms.Device

	mu     sync.Mutex
	leased map[uint32]grant // connectorID -> grant, tracks which connectors are out on lease
}

func main() {
	device := flag.String("device", envOrDefault("KMS_LEASE_DEVICE", "/dev/dri/card0"), "DRM device node to lease connectors from")
	socketPath := flag.String("socket", envOrDefault("KMS_LEASE_SOCKET", "/run/kmscore-lease.sock"), "unix socket to listen on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	dev, err := kms.Open(*device, logger)
	if err != nil {
		logger.Error("open device failed", "device", *device, "err", err)
		os.Exit(1)
	}
	defer dev.Close(logger)

	s := &server{logger: logger, dev: dev, leased: make(map[uint32]grant)}

	os.Remove(*socketPath)
	ln, err := net.Listen("unix", *socketPath)
	if err != nil {
		logger.Error("listen failed", "socket", *socketPath, "err", err)
		os.Exit(1)
	}
	defer ln.Close()
	logger.Info("lease server listening", "socket", *socketPath, "device", *device, "connectors", len(dev.Connectors))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Warn("accept failed", "err", err)
				continue
			}
		}
		go s.handleClient(conn)
	}
}

func (s *server) handleClient(conn net.Conn) {
	defer conn.Close()
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		s.logger.Error("connection is not a UnixConn")
		return
	}

	req, err := drm.ReadRequest(conn)
	if err != nil {
		s.logger.Error("read request failed", "err", err)
		return
	}

	switch req.Cmd {
	case drm.CmdRequestLease:
		connectorID := s.grantLease(unixConn, req.Width, req.Height)
		if connectorID == 0 {
			return
		}
		// Block on the connection; its closure is the liveness signal.
		buf := make([]byte, 1)
		conn.Read(buf)
		s.logger.Info("lease client disconnected, revoking", "connector_id", connectorID)
		s.revoke(connectorID)
	case drm.CmdReleaseLease:
		s.revoke(req.Width) // Width doubles as the connector id on release
	default:
		s.logger.Error("unknown command", "cmd", req.Cmd)
		drm.WriteError(conn, "unknown command")
	}
}

// grantLease picks a free connector, assigns it an encoder/CRTC/plane set,
// creates a DRM lease covering those objects and sends the lease fd to the
// client via SCM_RIGHTS. Returns the leased connector id, or 0 on failure.
func (s *server) grantLease(conn *net.UnixConn, width, height uint32) uint32 {
	s.mu.Lock()
	a, kc, err := s.pickFreeConnector()
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("no connector available", "err", err)
		drm.WriteError(conn, err.Error())
		return 0
	}

	objectIDs := []uint32{kc.ID, a.crtcID, a.primaryPlaneID}
	if a.cursorPlaneID != 0 {
		objectIDs = append(objectIDs, a.cursorPlaneID)
	}
	leaseFD, lesseeID, err := s.dev.CreateLease(objectIDs)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("create lease failed", "connector", kc.Name(), "err", err)
		drm.WriteError(conn, fmt.Sprintf("create lease: %v", err))
		return 0
	}
	s.leased[kc.ID] = grant{connectorID: kc.ID, lesseeID: lesseeID}
	s.mu.Unlock()

	s.logger.Info("lease granted", "connector", kc.Name(), "crtc", a.crtcID, "primary_plane", a.primaryPlaneID, "width", width, "height", height)

	if err := drm.WriteGrant(conn, kc.ID, kc.Name(), leaseFD); err != nil {
		s.logger.Error("send lease fd failed", "err", err)
		unix.Close(leaseFD)
		s.revoke(kc.ID)
		return 0
	}
	unix.Close(leaseFD) // server's copy; the client now owns its own via SCM_RIGHTS
	return kc.ID
}

func (s *server) revoke(connectorID uint32) {
	s.mu.Lock()
	g, ok := s.leased[connectorID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.leased, connectorID)
	s.mu.Unlock()

	if err := s.dev.RevokeLease(g.lesseeID); err != nil {
		s.logger.Warn("revoke lease failed", "connector_id", connectorID, "err", err)
	}
}

type assignment struct {
	crtcID         uint32
	primaryPlaneID uint32
	cursorPlaneID  uint32
}

// pickFreeConnector mirrors internal/renderer/assignment.go's pickAssignment,
// restricted to connectors this server hasn't already leased out. Caller
// holds s.mu.
func (s *server) pickFreeConnector() (assignment, *kms.Connector, error) {
	for _, kc := range s.dev.Connectors {
		if !kc.Connected {
			continue
		}
		if _, busy := s.leased[kc.ID]; busy {
			continue
		}
		for _, encID := range kc.EncoderIDs {
			enc := s.dev.Encoder(encID)
			if enc == nil {
				continue
			}
			for _, crtc := range s.dev.CRTCs {
				if crtc.ConnectorID != 0 {
					continue
				}
				mask := s.dev.CRTCMask(crtc.ID)
				if enc.PossibleCrtcs&mask == 0 {
					continue
				}
				primary := s.findFreePlane(crtc.ID, kms.PlanePrimary)
				if primary == 0 {
					continue
				}
				cursor := s.findFreePlane(crtc.ID, kms.PlaneCursor)
				return assignment{crtcID: crtc.ID, primaryPlaneID: primary, cursorPlaneID: cursor}, kc, nil
			}
		}
	}
	return assignment{}, nil, fmt.Errorf("no free connector/crtc/plane combination available")
}

func (s *server) findFreePlane(crtcID uint32, want kms.PlaneType) uint32 {
	mask := s.dev.CRTCMask(crtcID)
	for _, p := range s.dev.Planes {
		if p.Type != want || p.PossibleCrtcs&mask == 0 || p.ConnectorID != 0 {
			continue
		}
		return p.ID
	}
	return 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
