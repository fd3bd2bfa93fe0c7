package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/netsampler/nfcollector/decoders/netflow"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Addr         string
	TemplatePath string
	FieldsPath   string
}

// TemplateSource returns the learned templates per listener address.
type TemplateSource func() map[string]map[uint16]netflow.TemplateRecord

func write(wr http.ResponseWriter, status int, body []byte) {
	wr.WriteHeader(status)
	if _, err := wr.Write(body); err != nil {
		log.WithError(err).Error("error writing HTTP")
	}
}

func HealthHandler(isCollecting func() bool) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if !isCollecting() {
			write(wr, http.StatusServiceUnavailable, []byte("Not OK\n"))
			return
		}
		write(wr, http.StatusOK, []byte("OK\n"))
	}
}

func TemplatesHandler(templates TemplateSource) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		values := templates()
		if values == nil {
			write(wr, http.StatusNotFound, []byte("Not Found\n"))
			return
		}
		body, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			log.WithError(err).Error("error writing JSON body for templates")
			write(wr, http.StatusInternalServerError, []byte("Internal Server Error\n"))
			return
		}
		wr.Header().Add("Content-Type", "application/json")
		write(wr, http.StatusOK, body)
	}
}

type fieldTypeView struct {
	Type        uint16 `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Length      uint16 `json:"length"`
	Fixed       bool   `json:"fixed"`
}

// FieldsHandler lists the NetFlow v9 field types the decoder interprets.
func FieldsHandler() http.HandlerFunc {
	types := netflow.FieldTypes()
	views := make([]fieldTypeView, len(types))
	for i, ft := range types {
		views[i] = fieldTypeView{
			Type:        ft.Type,
			Name:        ft.Name,
			Description: ft.Description,
			Length:      ft.Length,
			Fixed:       ft.Fixed,
		}
	}
	body, err := json.MarshalIndent(views, "", "  ")
	return func(wr http.ResponseWriter, r *http.Request) {
		if err != nil {
			log.WithError(err).Error("error writing JSON body for fields")
			write(wr, http.StatusInternalServerError, []byte("Internal Server Error\n"))
			return
		}
		wr.Header().Add("Content-Type", "application/json")
		write(wr, http.StatusOK, body)
	}
}

// New returns a mux serving /metrics, /__health, the templates listing and
// the field type registry.
func New(cfg Config, templates TemplateSource, isCollecting func() bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/__health", HealthHandler(isCollecting))
	if cfg.TemplatePath != "" && templates != nil {
		mux.HandleFunc(cfg.TemplatePath, TemplatesHandler(templates))
	}
	if cfg.FieldsPath != "" {
		mux.HandleFunc(cfg.FieldsPath, FieldsHandler())
	}

	return mux
}
