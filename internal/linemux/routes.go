package linemux

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var tailTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/tail.html.tmpl"))

// AttachAdminRoutes registers the input tail and injection endpoints under
// /debug/ on mux.
func (m *LineMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("linemux", "live tail of input lines", func(w http.ResponseWriter, r *http.Request) {
		lines, dropped := m.Stats()
		buf := bytes.NewBuffer(nil)
		if err := tailTemplate.Execute(buf, map[string]int64{"Lines": lines, "Dropped": dropped}); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	// inject a line as though the source had produced it
	debug.HandleSilentFunc("linemux/inject", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		line := strings.TrimSpace(r.FormValue("line"))
		if line == "" {
			http.Error(w, "Missing line", http.StatusBadRequest)
			return
		}
		if err := m.Inject(r.Context(), line); err != nil {
			http.Error(w, "Failed to inject line", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, fmt.Sprintf("Injected %d bytes", len(line)))
	})

	// Server-Sent Events stream of input lines.
	debug.HandleSilentFunc("linemux/tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := m.Subscribe()
		defer m.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("linemux/tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")

		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
}
