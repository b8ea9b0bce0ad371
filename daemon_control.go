package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/koharu-go/koharu/pkg/daemon"
	"github.com/koharu-go/koharu/pkg/ops"
)

// healthHandler answers the daemon package's local IPC socket: HEALTH
// reports this process's identity and current workload, REFRESH
// re-writes the on-disk health file, QUIT triggers the same graceful
// shutdown path as an Interrupt/SIGTERM signal.
type healthHandler struct {
	version    string
	cpuOnly    bool
	startedAt  time.Time
	resources  ops.Resources
	healthPath string
	stop       context.CancelFunc
}

func (h *healthHandler) HandleCommand(cmd string, args map[string]string) (string, error) {
	switch cmd {
	case "HEALTH":
		data, err := json.Marshal(h.snapshot())
		if err != nil {
			return "", err
		}
		return string(data), nil
	case "REFRESH":
		if err := daemon.WriteHealthFile(h.healthPath, h.snapshot()); err != nil {
			return "", err
		}
		return `{"status":"refreshed"}`, nil
	case "QUIT":
		h.stop()
		return `{"status":"shutting down"}`, nil
	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}
}

func (h *healthHandler) snapshot() *daemon.HealthStatus {
	ctx := context.Background()
	status := &daemon.HealthStatus{
		PID:       os.Getpid(),
		Version:   h.version,
		StartedAt: h.startedAt,
		UptimeSec: time.Since(h.startedAt).Seconds(),
		CPUOnly:   h.cpuOnly,
	}

	docs, err := h.resources.GetDocuments(ctx)
	if err != nil || docs == 0 {
		return status
	}
	doc, err := h.resources.GetDocument(ctx, 0)
	if err != nil {
		return status
	}
	status.DocumentID = doc.ID
	status.TextBlocks = len(doc.TextBlocks)
	return status
}
