package server

import (
	"github.com/kingrea/jobprep/internal/artifact"
	"github.com/kingrea/jobprep/internal/crew"
)

// ProtocolVersion identifies the API contract exposed via /health.
const ProtocolVersion = "1.0.0"

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Busy          bool   `json:"busy"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// ArtifactPayload is a rendered output document.
type ArtifactPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FileName string `json:"file_name"`
	Content  string `json:"content,omitempty"`
	Missing  bool   `json:"missing,omitempty"`
	Warning  string `json:"warning,omitempty"`
	// DownloadURL is relative to the server root.
	DownloadURL string `json:"download_url,omitempty"`
}

// RunResponse is returned by POST /runs on success.
type RunResponse struct {
	RunID     string            `json:"run_id"`
	Artifacts []ArtifactPayload `json:"artifacts"`
	Warnings  []string          `json:"warnings,omitempty"`
}

func newRunResponse(result crew.Result, layout artifact.Layout) RunResponse {
	resp := RunResponse{RunID: result.RunID, Warnings: result.Warnings()}
	for _, item := range result.Artifacts {
		payload := ArtifactPayload{
			ID:       item.Ref.ID,
			Name:     item.Ref.Name,
			FileName: item.Ref.FileName(layout),
			Content:  item.Content,
			Missing:  item.Missing,
			Warning:  item.Warning(),
		}
		if !item.Missing && item.Err == nil {
			payload.DownloadURL = artifactsPath + item.Ref.ID
		}
		resp.Artifacts = append(resp.Artifacts, payload)
	}
	return resp
}
