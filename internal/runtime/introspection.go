package runtime

import (
	"net/http"

	"github.com/drblury/mediaflow/internal/runtime/handlers"
	jsoncodec "github.com/drblury/mediaflow/internal/runtime/jsoncodec"
)

// BindingInfo describes the bindings of one media type.
type BindingInfo struct {
	MediaType string   `json:"media_type"`
	Bindings  []string `json:"bindings"`
	Active    string   `json:"active,omitempty"`
}

// HandlersReport is served on /api/handlers next to the metrics endpoint.
type HandlersReport struct {
	Transport string           `json:"transport"`
	Bindings  []BindingInfo    `json:"bindings"`
	Stats     []MediaTypeStats `json:"stats"`
	Error     string           `json:"error,omitempty"`
}

// Report lists every registered binding, the active one per media type and
// the handling stats collected so far.
func (s *Service) Report() HandlersReport {
	report := HandlersReport{
		Transport: s.Conf.Transport(),
		Stats:     s.stats.Snapshot(),
	}

	bound, err := s.handlers.Bound(s.activeHandlers())
	if err != nil {
		report.Error = err.Error()
		bound = handlers.Bound{}
	}
	for _, mt := range s.handlers.MediaTypes() {
		info := BindingInfo{MediaType: mt, Bindings: s.handlers.NamesOf(mt)}
		if b, ok := bound[mt]; ok {
			info.Active = b.Name
		}
		report.Bindings = append(report.Bindings, info)
	}
	return report
}

func (s *Service) handleGetHandlers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := jsoncodec.Marshal(s.Report())
	if err != nil {
		s.Logger.Error("Failed to encode handlers", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
