package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vmware/govmomi/vim25/types"
	"github.com/yeyushilai/VMware-Manager/internal/service"
	"github.com/yeyushilai/VMware-Manager/internal/vsphere"
	"github.com/yeyushilai/VMware-Manager/pkg/metrics"
	"github.com/yeyushilai/VMware-Manager/pkg/version"
	"go.uber.org/zap"
)

// Service is the part of service.VMService the API is served from.
type Service interface {
	metrics.InventoryStatsProvider

	Check(ctx context.Context) bool
	Version(ctx context.Context) (string, error)
	ListVMs(ctx context.Context, cluster string) ([]vsphere.VirtualMachine, error)
	GetVM(ctx context.Context, uuid string) (vsphere.VirtualMachine, error)
	Operate(ctx context.Context, uuid, operation string) error
	Update(ctx context.Context, uuid string, fields vsphere.ReconfigureFields) error
	Ticket(ctx context.Context, uuid string) (*types.VirtualMachineTicket, error)
	Counters(ctx context.Context) (map[string]int32, error)
	QueryMetrics(ctx context.Context, uuid string, req service.MetricsRequest) ([]vsphere.Sample, error)
	Entities(ctx context.Context, kind string) ([]vsphere.Node, error)
}

var _ Service = (*service.VMService)(nil)

type handler struct {
	svc      Service
	validate *validator.Validate
	log      *zap.SugaredLogger
}

// RegisterApi mounts the REST endpoints on router.
func RegisterApi(router chi.Router, svc Service) {
	h := &handler{
		svc:      svc,
		validate: validator.New(),
		log:      zap.S().Named("rest"),
	}

	router.Get("/health", h.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", h.version)
		r.Get("/vms", h.listVMs)
		r.Route("/vms/{uuid}", func(r chi.Router) {
			r.Get("/", h.getVM)
			r.Patch("/", h.updateVM)
			r.Post("/operations/{operation}", h.operate)
			r.Get("/ticket", h.ticket)
			r.Get("/metrics", h.queryMetrics)
		})
		r.Get("/counters", h.counters)
		r.Get("/inventory/{kind}", h.entities)
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, HealthReply{Status: "ok", Connected: h.svc.Check(r.Context())})
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Version(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = render.Render(w, r, VersionReply{Version: version.Get().String(), VSphere: v})
}

func (h *handler) listVMs(w http.ResponseWriter, r *http.Request) {
	vms, err := h.svc.ListVMs(r.Context(), r.URL.Query().Get("cluster"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = render.Render(w, r, VMListReply(vms))
}

func (h *handler) getVM(w http.ResponseWriter, r *http.Request) {
	vm, err := h.svc.GetVM(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = render.Render(w, r, VMReply(vm))
}

func (h *handler) updateVM(w http.ResponseWriter, r *http.Request) {
	var fields vsphere.ReconfigureFields
	if err := render.DecodeJSON(r.Body, &fields); err != nil {
		h.fail(w, r, service.NewErrInvalidArgument("decoding body: %v", err))
		return
	}
	if fields.Empty() {
		h.fail(w, r, service.NewErrInvalidArgument("one of name or note is required"))
		return
	}
	if err := h.validate.Struct(fields); err != nil {
		h.fail(w, r, service.NewErrInvalidArgument("%v", err))
		return
	}

	uuid := chi.URLParam(r, "uuid")
	if err := h.svc.Update(r.Context(), uuid, fields); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Infow("vm updated", "uuid", uuid)

	vm, err := h.svc.GetVM(r.Context(), uuid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = render.Render(w, r, VMReply(vm))
}

func (h *handler) operate(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	operation := chi.URLParam(r, "operation")
	if err := h.svc.Operate(r.Context(), uuid, operation); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Infow("operation done", "uuid", uuid, "operation", operation)
	_ = render.Render(w, r, OperationReply{UUID: uuid, Operation: operation})
}

func (h *handler) ticket(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Ticket(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = render.Render(w, r, newTicketReply(t))
}

func (h *handler) queryMetrics(w http.ResponseWriter, r *http.Request) {
	req, err := metricsRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	samples, err := h.svc.QueryMetrics(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = render.Render(w, r, SamplesReply(samples))
}

func (h *handler) counters(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.svc.Counters(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = render.Render(w, r, CountersReply(catalog))
}

func (h *handler) entities(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.Entities(r.Context(), chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = render.Render(w, r, EntitiesReply(nodes))
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("request failed", "path", r.URL.Path, "error", err)
	}
	_ = render.Render(w, r, newErrResponse(r, status, err))
}

// metricsRequest reads ?counter=a&counter=b (or a comma separated list),
// ?since=<duration> and ?instance=.
func metricsRequest(r *http.Request) (service.MetricsRequest, error) {
	q := r.URL.Query()
	req := service.MetricsRequest{Instance: q.Get("instance")}

	for _, c := range q["counter"] {
		for _, name := range strings.Split(c, ",") {
			if name = strings.TrimSpace(name); name != "" {
				req.Counters = append(req.Counters, name)
			}
		}
	}

	if since := q.Get("since"); since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return req, service.NewErrInvalidArgument("since: %v", err)
		}
		if d <= 0 {
			return req, service.NewErrInvalidArgument("since must be positive, got %s", since)
		}
		req.Since = d
	}
	return req, nil
}

// notFound renders unknown routes like every other error.
func notFound(w http.ResponseWriter, r *http.Request) {
	err := vsphere.NewNotFoundError("route", fmt.Sprintf("%s %s", r.Method, r.URL.Path))
	_ = render.Render(w, r, newErrResponse(r, http.StatusNotFound, err))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	err := errors.New("method not allowed")
	_ = render.Render(w, r, newErrResponse(r, http.StatusMethodNotAllowed, err))
}
