package tools

import (
	"encoding/json"
	"net/http"

	"github.com/GenLoc-2025/GenLoc/internal/tools"
)

// SchemaPath serves the tool catalog.
const SchemaPath = "/tools/schemas"

// SchemaHandler serves tool definitions as JSON, exactly as advertised to the model.
type SchemaHandler struct{}

// ServeHTTP renders schemas.
func (h SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tools.Definitions())
}
