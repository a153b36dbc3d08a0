package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-covid/internal/daterange"
)

type InfoHandler struct {
	dataDir   string
	dbOK      bool
	persisted bool
	rng       daterange.Range
}

func NewInfoHandler(dataDir string, dbOK, persisted bool, rng daterange.Range) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, persisted: persisted, rng: rng}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name      string   `json:"name" doc:"Service name"`
	Version   string   `json:"version" doc:"Service version"`
	DataDir   string   `json:"data_dir" doc:"Data directory path"`
	DB        bool     `json:"db" doc:"Whether database is available"`
	Persisted bool     `json:"persisted" doc:"Whether sessions survive restarts (Redis)"`
	StartDate string   `json:"start_date" doc:"First day of the date range" example:"2020-01-23"`
	Days      int      `json:"days" doc:"Days in the date range, fixed at startup"`
	Features  []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"geojson", "datastar", "clusters"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	if h.persisted {
		features = append(features, "redis")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:      "plat-covid",
		Version:   "0.1.0",
		DataDir:   h.dataDir,
		DB:        h.dbOK,
		Persisted: h.persisted,
		StartDate: daterange.Format(h.rng.Start),
		Days:      h.rng.Days,
		Features:  features,
	}}, nil
}
