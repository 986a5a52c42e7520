package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/vmware/govmomi/vim25/types"
	"github.com/yeyushilai/VMware-Manager/internal/service"
	"github.com/yeyushilai/VMware-Manager/internal/vsphere"
	"github.com/yeyushilai/VMware-Manager/pkg/requestid"
)

type HealthReply struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
}

type VersionReply struct {
	Version string `json:"version"`
	VSphere string `json:"vsphere"`
}

type VMReply vsphere.VirtualMachine

type VMListReply []vsphere.VirtualMachine

type OperationReply struct {
	UUID      string `json:"uuid"`
	Operation string `json:"operation"`
}

type TicketReply struct {
	Ticket        string `json:"ticket"`
	Host          string `json:"host"`
	Port          int32  `json:"port"`
	SslThumbprint string `json:"sslThumbprint,omitempty"`
	URL           string `json:"url,omitempty"`
}

func newTicketReply(t *types.VirtualMachineTicket) TicketReply {
	return TicketReply{
		Ticket:        t.Ticket,
		Host:          t.Host,
		Port:          t.Port,
		SslThumbprint: t.SslThumbprint,
		URL:           t.Url,
	}
}

type SamplesReply []vsphere.Sample

type CountersReply map[string]int32

type EntitiesReply []vsphere.Node

// ErrResponse is the body of every failed request.
type ErrResponse struct {
	HTTPStatusCode int    `json:"-"`
	Message        string `json:"message"`
	RequestID      string `json:"requestId,omitempty"`
}

func newErrResponse(r *http.Request, status int, err error) *ErrResponse {
	return &ErrResponse{
		HTTPStatusCode: status,
		Message:        err.Error(),
		RequestID:      requestid.FromRequest(r),
	}
}

// statusFor maps service and vSphere errors to HTTP status codes.
func statusFor(err error) int {
	var (
		notFound   *vsphere.NotFoundError
		invalid    *service.ErrInvalidArgument
		taskFault  *vsphere.TaskFaultError
		connection *vsphere.ConnectionError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &taskFault):
		return http.StatusConflict
	case errors.As(err, &connection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func (h HealthReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (v VersionReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (v VMReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (v VMListReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (o OperationReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (t TicketReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (s SamplesReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (c CountersReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (e EntitiesReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}
