package federation

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// NodeInfo is the subset of the NodeInfo 2.1 schema a SetNodeInfoDispatcher
// handler fills in.
type NodeInfo struct {
	Software          NodeInfoSoftware  `json:"software"`
	Protocols         []string          `json:"protocols"`
	Usage             NodeInfoUsage     `json:"usage"`
	OpenRegistrations bool              `json:"openRegistrations"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type NodeInfoSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type NodeInfoUsage struct {
	Users NodeInfoUsers `json:"users"`
}

type NodeInfoUsers struct {
	Total int `json:"total,omitempty"`
}

type nodeInfoDocument struct {
	Version string `json:"version"`
	NodeInfo
}

// serveNodeInfo answers the versioned descriptor registered via
// SetNodeInfoDispatcher; the /.well-known/nodeinfo linking document is
// served separately by WellKnownNodeInfoHandler.
func (f *Federation) serveNodeInfo(w http.ResponseWriter, r *http.Request, fctx *Context) {
	if f.nodeInfoDispatcher == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	info, err := f.nodeInfoDispatcher(fctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	doc := nodeInfoDocument{Version: "2.1", NodeInfo: info}
	jsonResponse(w, r, doc, http.StatusOK)
}

// WellKnownNodeInfoHandler serves /.well-known/nodeinfo, the linking
// document that points at the versioned descriptor registered via
// SetNodeInfoDispatcher.
func (f *Federation) WellKnownNodeInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.nodeInfoDispatcher == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		href := f.nodeInfoPath
		if f.baseURL != nil {
			u := *f.baseURL
			u.Path = f.nodeInfoPath
			href = u.String()
		}
		resp := map[string]interface{}{
			"links": []map[string]string{
				{
					"rel":  "http://nodeinfo.diaspora.software/ns/schema/2.1",
					"href": href,
				},
			},
		}
		jsonResponse(w, r, resp, http.StatusOK)
	}
}

func jsonResponse(w http.ResponseWriter, r *http.Request, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	publicCORS.HandlerFunc(w, r)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("federation: failed to encode NodeInfo response", "error", err)
	}
}
