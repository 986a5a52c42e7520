package service

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/vmware/govmomi/simulator"
	"github.com/yeyushilai/VMware-Manager/internal/vsphere"
)

var _ = Describe("VM service", func() {
	var (
		ctx    context.Context
		model  *simulator.Model
		server *simulator.Server
		svc    *VMService
	)

	BeforeEach(func() {
		ctx = context.TODO()
		model = simulator.VPX()
		Expect(model.Create()).To(Succeed())
		server = model.Service.NewServer()

		password, _ := server.URL.User.Password()
		session := vsphere.NewSession(vsphere.Config{
			URL:      server.URL.String(),
			Username: server.URL.User.Username(),
			Password: password,
			Timeout:  30 * time.Second,
		})
		svc = NewVMService(session, WithGracePeriod(0))
	})

	AfterEach(func() {
		_ = svc.Close(ctx)
		server.Close()
		model.Remove()
	})

	firstUUID := func() string {
		vms, err := svc.ListVMs(ctx, "")
		Expect(err).To(BeNil())
		Expect(vms).NotTo(BeEmpty())
		return vms[0].UUID
	}

	Context("check", func() {
		It("connects", func() {
			Expect(svc.Check(ctx)).To(BeTrue())
		})
	})

	Context("expired session", func() {
		var idle time.Duration

		BeforeEach(func() {
			idle = simulator.SessionIdleTimeout
			simulator.SessionIdleTimeout = 200 * time.Millisecond
		})

		AfterEach(func() {
			simulator.SessionIdleTimeout = idle
		})

		It("keeps listing after the session idles out", func() {
			vms, err := svc.ListVMs(ctx, "")
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(model.Count().Machine))

			time.Sleep(time.Second)
			for i := 0; i < 3; i++ {
				vms, err = svc.ListVMs(ctx, "")
				Expect(err).To(BeNil())
				Expect(vms).To(HaveLen(model.Count().Machine))
			}
			Expect(svc.Check(ctx)).To(BeTrue())
		})

		It("reports the connection through the cached session", func() {
			Expect(svc.Check(ctx)).To(BeTrue())

			time.Sleep(time.Second)
			Expect(svc.Check(ctx)).To(BeTrue())
			_, err := svc.Entities(ctx, "clusters")
			Expect(err).To(BeNil())
		})
	})

	Context("options", func() {
		It("waits ten seconds after guest operations by default", func() {
			Expect(NewVMService(nil).grace).To(Equal(10 * time.Second))
			Expect(NewVMService(nil, WithGracePeriod(time.Second)).grace).To(Equal(time.Second))
		})
	})

	Context("session lock", func() {
		It("gives up waiting when the context is done", func() {
			Expect(svc.sem.Acquire(ctx, 1)).To(Succeed())
			defer svc.sem.Release(1)

			waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			_, err := svc.ListVMs(waitCtx, "")
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(svc.Check(waitCtx)).To(BeFalse())
		})
	})

	Context("list", func() {
		It("lists every vm", func() {
			vms, err := svc.ListVMs(ctx, "")
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(model.Count().Machine))
			for _, vm := range vms {
				Expect(vm.UUID).NotTo(BeEmpty())
				Expect(vm.Name).NotTo(BeEmpty())
				Expect(vm.Host).NotTo(BeEmpty())
			}
		})

		It("scopes the listing to a cluster", func() {
			vms, err := svc.ListVMs(ctx, "DC0_C0")
			Expect(err).To(BeNil())
			for _, vm := range vms {
				Expect(vm.Cluster).To(Equal("DC0_C0"))
			}
		})

		It("fails for an unknown cluster", func() {
			_, err := svc.ListVMs(ctx, "no-such-cluster")
			var nf *vsphere.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
		})
	})

	Context("get", func() {
		It("returns the detailed view", func() {
			uuid := firstUUID()
			vm, err := svc.GetVM(ctx, uuid)
			Expect(err).To(BeNil())
			Expect(vm.UUID).To(Equal(uuid))
			Expect(vm.Datastores).NotTo(BeEmpty())
		})

		It("fails for an unknown uuid", func() {
			_, err := svc.GetVM(ctx, "00000000-0000-0000-0000-000000000000")
			var nf *vsphere.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
		})
	})

	Context("operate", func() {
		It("rejects unknown operations", func() {
			err := svc.Operate(ctx, firstUUID(), "explode")
			var invalid *ErrInvalidArgument
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(errors.Is(err, vsphere.ErrInvalidOperation)).To(BeTrue())
		})

		It("powers a vm off and on", func() {
			uuid := firstUUID()
			Expect(svc.Operate(ctx, uuid, "poweroff")).To(Succeed())

			vm, err := svc.GetVM(ctx, uuid)
			Expect(err).To(BeNil())
			Expect(vm.Status).To(Equal("poweredOff"))

			Expect(svc.Operate(ctx, uuid, "poweron")).To(Succeed())
		})
	})

	Context("update", func() {
		It("rejects a blank name", func() {
			name := "  "
			err := svc.Update(ctx, firstUUID(), vsphere.ReconfigureFields{Name: &name})
			var invalid *ErrInvalidArgument
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("changes the note", func() {
			uuid := firstUUID()
			note := "database primary"
			Expect(svc.Update(ctx, uuid, vsphere.ReconfigureFields{Note: &note})).To(Succeed())

			vm, err := svc.GetVM(ctx, uuid)
			Expect(err).To(BeNil())
			Expect(vm.Note).To(Equal(note))
		})
	})

	Context("inventory", func() {
		It("lists datacenters", func() {
			nodes, err := svc.Entities(ctx, "datacenters")
			Expect(err).To(BeNil())
			Expect(nodes).To(ContainElement(HaveField("Name", "DC0")))
		})

		It("rejects unknown kinds", func() {
			_, err := svc.Entities(ctx, "vapps")
			var invalid *ErrInvalidArgument
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("summarizes the inventory", func() {
			stats, err := svc.InventoryStats(ctx)
			Expect(err).To(BeNil())
			Expect(stats.Total).To(Equal(model.Count().Machine))
		})
	})

	Context("metrics", func() {
		It("requires a counter", func() {
			_, err := svc.QueryMetrics(ctx, firstUUID(), MetricsRequest{})
			var invalid *ErrInvalidArgument
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("rejects unknown counters", func() {
			_, err := svc.QueryMetrics(ctx, firstUUID(), MetricsRequest{Counters: []string{"nope.nope.none"}})
			var invalid *ErrInvalidArgument
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("returns the counter catalog", func() {
			counters, err := svc.Counters(ctx)
			Expect(err).To(BeNil())
			Expect(counters).NotTo(BeEmpty())
		})
	})
})
