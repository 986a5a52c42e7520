package vsphere

import (
	"context"
	"errors"
	"slices"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/vmware/govmomi/simulator"
)

// overlap clears the fields only a live read fills in.
func overlap(vm VirtualMachine) VirtualMachine {
	vm.NICs = nil
	vm.Datastores = nil
	vm.Networks = nil
	return vm
}

var _ = Describe("against a simulated vCenter", func() {
	var (
		ctx     context.Context
		model   *simulator.Model
		server  *simulator.Server
		session *Session
	)

	BeforeEach(func() {
		ctx = context.TODO()
		model = simulator.VPX()
		Expect(model.Create()).To(Succeed())
		server = model.Service.NewServer()

		password, _ := server.URL.User.Password()
		session = NewSession(Config{
			URL:      server.URL.String(),
			Username: server.URL.User.Username(),
			Password: password,
			Timeout:  30 * time.Second,
		})
	})

	AfterEach(func() {
		_ = session.Logout(ctx)
		server.Close()
		model.Remove()
	})

	collectVMs := func() []PropertyRecord {
		version, err := session.Version(ctx)
		Expect(err).To(BeNil())
		props := DefaultVMProperties(version)
		if !slices.Contains(props, PropCreateDate) {
			props = append(props, PropCreateDate)
		}

		c, err := session.Vim25(ctx)
		Expect(err).To(BeNil())
		records, err := NewReader(c).Collect(ctx, KindVirtualMachine, props, nil, true)
		Expect(err).To(BeNil())
		return records
	}

	Context("session", func() {
		It("connects and reports the version", func() {
			Expect(session.CheckConnected(ctx)).To(BeTrue())

			version, err := session.Version(ctx)
			Expect(err).To(BeNil())
			Expect(version).NotTo(BeEmpty())
		})

		It("reuses the client", func() {
			a, err := session.Client(ctx)
			Expect(err).To(BeNil())
			b, err := session.Client(ctx)
			Expect(err).To(BeNil())
			Expect(a).To(BeIdenticalTo(b))
		})

		It("reports an unreachable endpoint as not connected", func() {
			s := NewSession(Config{URL: "http://127.0.0.1:1/sdk", Username: "u", Password: "p", Timeout: 5 * time.Second})
			Expect(s.CheckConnected(ctx)).To(BeFalse())

			_, err := s.Client(ctx)
			var ce *ConnectionError
			Expect(errors.As(err, &ce)).To(BeTrue())
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

		datacenters := func(s *Session) error {
			c, err := s.Vim25(ctx)
			if err != nil {
				return err
			}
			_, err = NewReader(c).Entities(ctx, KindDatacenter)
			return err
		}

		It("logs in again once the endpoint drops the session", func() {
			Expect(datacenters(session)).To(Succeed())
			before, err := session.Client(ctx)
			Expect(err).To(BeNil())

			time.Sleep(time.Second)
			Expect(IsNotAuthenticated(datacenters(session))).To(BeTrue())

			Expect(session.Retry(ctx, func() error { return datacenters(session) })).To(Succeed())
			after, err := session.Client(ctx)
			Expect(err).To(BeNil())
			Expect(after).NotTo(BeIdenticalTo(before))
		})

		It("checks the cached session and restores it", func() {
			Expect(datacenters(session)).To(Succeed())

			time.Sleep(time.Second)
			Expect(session.CheckConnected(ctx)).To(BeTrue())
			Expect(datacenters(session)).To(Succeed())
		})

		It("keeps an idle session alive", func() {
			password, _ := server.URL.User.Password()
			s := NewSession(Config{
				URL:       server.URL.String(),
				Username:  server.URL.User.Username(),
				Password:  password,
				Timeout:   30 * time.Second,
				KeepAlive: 50 * time.Millisecond,
			})
			defer func() { _ = s.Logout(ctx) }()

			Expect(datacenters(s)).To(Succeed())
			before, err := s.Client(ctx)
			Expect(err).To(BeNil())

			time.Sleep(time.Second)
			Expect(datacenters(s)).To(Succeed())
			after, err := s.Client(ctx)
			Expect(err).To(BeNil())
			Expect(after).To(BeIdenticalTo(before))
		})
	})

	Context("inventory", func() {
		It("collects every vm in one pass", func() {
			records := collectVMs()
			Expect(records).To(HaveLen(model.Count().Machine))
			for _, rec := range records {
				Expect(rec.Ref).NotTo(BeNil())
				Expect(rec.String(PropUUID)).NotTo(BeEmpty())
			}
		})

		It("finds datacenters and clusters", func() {
			c, err := session.Vim25(ctx)
			Expect(err).To(BeNil())
			reader := NewReader(c)

			dc, err := reader.FindByName(ctx, KindDatacenter, "DC0")
			Expect(err).To(BeNil())
			Expect(dc.Kind).To(Equal(KindDatacenter))

			byID, err := reader.FindByID(ctx, KindDatacenter, dc.ID)
			Expect(err).To(BeNil())
			Expect(byID.Name).To(Equal("DC0"))

			_, err = reader.FindByName(ctx, KindClusterComputeResource, "no-such-cluster")
			var nf *NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
		})

		It("normalizes batch and live reads alike", func() {
			records := collectVMs()
			c, err := session.Vim25(ctx)
			Expect(err).To(BeNil())
			idx, err := NewReader(c).Index(ctx)
			Expect(err).To(BeNil())
			n := NewNormalizer(idx, NewLiveSource(c))

			for _, rec := range records {
				batch, err := n.FromBatch(ctx, rec)
				Expect(err).To(BeNil())
				live, err := n.FromLive(ctx, *rec.Ref)
				Expect(err).To(BeNil())

				Expect(batch.Host).NotTo(BeEmpty())
				Expect(overlap(batch)).To(Equal(overlap(live)))
				Expect(live.Datastores).NotTo(BeEmpty())
			}
		})
	})

	Context("commands", func() {
		var (
			executor *Executor
			uuid     string
		)

		BeforeEach(func() {
			records := collectVMs()
			Expect(records).NotTo(BeEmpty())
			uuid = records[0].String(PropUUID)

			c, err := session.Vim25(ctx)
			Expect(err).To(BeNil())
			executor = NewExecutor(NewSearchLocator(c), WithGracePeriod(0))
		})

		It("resolves a vm by uuid", func() {
			m, err := executor.Resolve(ctx, uuid)
			Expect(err).To(BeNil())
			Expect(m.Reference().Type).To(Equal(KindVirtualMachine))

			_, err = executor.Resolve(ctx, "00000000-0000-0000-0000-000000000000")
			var nf *NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
		})

		It("powers off once and faults the second time", func() {
			Expect(executor.Apply(ctx, uuid, OpPowerOff)).To(Succeed())

			err := executor.Apply(ctx, uuid, OpPowerOff)
			var tf *TaskFaultError
			Expect(errors.As(err, &tf)).To(BeTrue())

			Expect(executor.Apply(ctx, uuid, OpPowerOn)).To(Succeed())
		})

		It("updates the note", func() {
			note := "owned by the storage team"
			Expect(executor.Reconfigure(ctx, uuid, ReconfigureFields{Note: &note})).To(Succeed())

			m, err := executor.Resolve(ctx, uuid)
			Expect(err).To(BeNil())
			c, err := session.Vim25(ctx)
			Expect(err).To(BeNil())
			vm, err := NewNormalizer(nil, NewLiveSource(c)).FromLive(ctx, m.Reference())
			Expect(err).To(BeNil())
			Expect(vm.Note).To(Equal(note))
		})
	})

	Context("metrics", func() {
		It("builds the counter catalog", func() {
			m, err := session.Metrics(ctx)
			Expect(err).To(BeNil())
			catalog, err := m.CounterCatalog(ctx)
			Expect(err).To(BeNil())
			Expect(catalog).To(HaveKey("cpu.usage.average"))
		})
	})
})
