package integration

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"vigil-go/internal/domain"
	"vigil-go/internal/engine"
	"vigil-go/internal/hook"
	"vigil-go/internal/lifecycle"
	storemem "vigil-go/internal/store/memory"
	streammem "vigil-go/internal/stream/memory"
)

var _ = Describe("Alert Lifecycle", func() {
	var (
		ctx          context.Context
		service      *engine.Service
		repo         *storemem.AlertRepository
		suppressions *storemem.SuppressionStore
		publisher    *streammem.Publisher
	)

	newEvent := func(event string, severity domain.Severity) *domain.Alert {
		return &domain.Alert{
			Environment: "production",
			Resource:    "web01",
			Event:       event,
			Severity:    severity,
			Service:     []string{"frontend"},
			Timeout:     86400,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		repo = storemem.NewAlertRepository()
		suppressions = storemem.NewSuppressionStore()
		publisher = streammem.NewPublisher()

		service = engine.NewService(
			repo,
			suppressions,
			lifecycle.New(""),
			[]hook.Hook{&hook.EnvironmentPolicy{Allowed: []string{"production", "development"}}},
			publisher,
			engine.Config{HistoryLimit: 100, MaxWriteRetries: 3},
			logger,
		)
	})

	Context("when the same problem fires repeatedly", func() {
		It("deduplicates, correlates on severity change and auto-closes on recovery", func() {
			// 1. First event opens a new alert
			created, outcome, err := service.Receive(ctx, newEvent("HighCPU", domain.SeverityMajor))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(engine.OutcomeCreated))
			Expect(created.Status).To(Equal(domain.StatusOpen))

			// 2. Repeats only bump the duplicate count
			for i := 1; i <= 3; i++ {
				dup, outcome, err := service.Receive(ctx, newEvent("HighCPU", domain.SeverityMajor))
				Expect(err).NotTo(HaveOccurred())
				Expect(outcome).To(Equal(engine.OutcomeDuplicate))
				Expect(dup.ID).To(Equal(created.ID))
				Expect(dup.DuplicateCount).To(Equal(i))
			}

			// 3. A worsening severity correlates and resets the count
			worse, outcome, err := service.Receive(ctx, newEvent("HighCPU", domain.SeverityCritical))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(engine.OutcomeCorrelated))
			Expect(worse.ID).To(Equal(created.ID))
			Expect(worse.DuplicateCount).To(Equal(0))
			Expect(worse.PreviousSeverity).To(Equal(domain.SeverityMajor))
			Expect(worse.TrendIndication).To(Equal(domain.TrendMoreSevere))

			// 4. Recovery closes the alert
			recovered, outcome, err := service.Receive(ctx, newEvent("HighCPU", domain.SeverityNormal))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(engine.OutcomeCorrelated))
			Expect(recovered.Status).To(Equal(domain.StatusClosed))

			// 5. Only one record ever existed
			all, err := repo.List(ctx, domain.AlertFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))

			// 6. Every write reached the outbound stream
			Expect(publisher.Published()).To(HaveLen(6))
		})
	})

	Context("when an operator works an alert", func() {
		It("acknowledges, reopens on worsening and closes", func() {
			created, _, err := service.Receive(ctx, newEvent("DiskFull", domain.SeverityMinor))
			Expect(err).NotTo(HaveOccurred())

			// Short-id prefix works for actions
			acked, err := service.Action(ctx, created.ID[:8], domain.ActionAck, "investigating", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(acked.Status).To(Equal(domain.StatusAck))

			// Duplicate at the same severity leaves the ack in place
			same, _, err := service.Receive(ctx, newEvent("DiskFull", domain.SeverityMinor))
			Expect(err).NotTo(HaveOccurred())
			Expect(same.Status).To(Equal(domain.StatusAck))

			// A worsening severity reopens the acknowledged alert
			worse, _, err := service.Receive(ctx, newEvent("DiskFull", domain.SeverityCritical))
			Expect(err).NotTo(HaveOccurred())
			Expect(worse.Status).To(Equal(domain.StatusOpen))

			closed, err := service.Action(ctx, created.ID, domain.ActionClose, "fixed", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(closed.Status).To(Equal(domain.StatusClosed))
			Expect(closed.Severity).To(Equal(domain.SeverityNormal))

			// The history tells the whole story in order
			types := make([]domain.ChangeType, 0, len(closed.History))
			for _, entry := range closed.History {
				types = append(types, entry.Type)
			}
			Expect(types[0]).To(Equal(domain.ChangeSeverity))
			Expect(len(closed.History)).To(BeNumerically(">=", 5))
		})

		It("refuses actions the current status does not allow", func() {
			created, _, err := service.Receive(ctx, newEvent("DiskFull", domain.SeverityMinor))
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Action(ctx, created.ID, domain.ActionShelve, "", nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Action(ctx, created.ID, domain.ActionAck, "", nil)
			Expect(err).To(HaveOccurred())

			var invalid *lifecycle.InvalidActionError
			Expect(errors.As(err, &invalid)).To(BeTrue())

			// The refused action left nothing behind
			got, err := service.Get(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(domain.StatusShelved))
		})
	})

	Context("when a blackout window covers the resource", func() {
		It("forces blackout status and reverts when the window ends", func() {
			now := time.Now().UTC()
			Expect(suppressions.Create(ctx, &domain.Suppression{
				ID:          "maintenance",
				Environment: "production",
				Resource:    "web01",
				StartTime:   now.Add(-time.Minute),
				EndTime:     now.Add(time.Hour),
			})).To(Succeed())

			suppressedAlert, _, err := service.Receive(ctx, newEvent("HighCPU", domain.SeverityCritical))
			Expect(err).NotTo(HaveOccurred())
			Expect(suppressedAlert.Status).To(Equal(domain.StatusBlackout))

			Expect(suppressions.Delete(ctx, "maintenance")).To(Succeed())

			reverted, _, err := service.Receive(ctx, newEvent("HighCPU", domain.SeverityCritical))
			Expect(err).NotTo(HaveOccurred())
			Expect(reverted.Status).To(Equal(domain.StatusOpen))
		})
	})

	Context("when housekeeping sweeps", func() {
		It("expires stale alerts and a new event reopens them", func() {
			stale := newEvent("HighCPU", domain.SeverityMajor)
			stale.Timeout = 60
			created, _, err := service.Receive(ctx, stale)
			Expect(err).NotTo(HaveOccurred())

			backdated := created.Clone()
			backdated.LastReceiveTime = time.Now().UTC().Add(-2 * time.Minute)
			backdated.UpdateTime = created.UpdateTime.Add(time.Millisecond)
			_, err = repo.Update(ctx, created, backdated)
			Expect(err).NotTo(HaveOccurred())

			result, err := service.Housekeeping(ctx, 2*time.Hour, 12*time.Hour)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ExpiredIDs).To(ConsistOf(created.ID))

			expired, err := service.Get(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(expired.Status).To(Equal(domain.StatusExpired))

			// The problem recurring reopens the expired alert
			reopened, _, err := service.Receive(ctx, newEvent("HighCPU", domain.SeverityMajor))
			Expect(err).NotTo(HaveOccurred())
			Expect(reopened.ID).To(Equal(created.ID))
			Expect(reopened.Status).To(Equal(domain.StatusOpen))
		})
	})
})
