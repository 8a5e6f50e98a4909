package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/service"
	"sproutlog.app/api/internal/store"
)

var _ = Describe("SeatLedger", func() {
	var (
		subs   *mockSubscriptionStore
		ledger service.SeatLedger
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		subs = &mockSubscriptionStore{}
		ledger = service.NewSeatLedger(subs)
	})

	Describe("CheckAvailability", func() {
		Context("when seats remain under the ceiling", func() {
			It("reports available with the current counts", func() {
				subs.getByOrganizationFn = func(_ context.Context, _ int64) (*model.Subscription, error) {
					return &model.Subscription{
						Status:      model.SubscriptionStatusActive,
						MaxSeats:    10,
						ActiveSeats: 4,
					}, nil
				}

				avail, err := ledger.CheckAvailability(ctx, 1, 3)

				Expect(err).NotTo(HaveOccurred())
				Expect(avail.Available).To(BeTrue())
				Expect(avail.MaxSeats).To(Equal(int32(10)))
				Expect(avail.ActiveSeats).To(Equal(int32(4)))
				Expect(avail.Message).To(BeEmpty())
			})
		})

		Context("when the request exceeds the remaining seats", func() {
			It("reports unavailable with an explanatory message", func() {
				subs.getByOrganizationFn = func(_ context.Context, _ int64) (*model.Subscription, error) {
					return &model.Subscription{
						Status:      model.SubscriptionStatusActive,
						MaxSeats:    5,
						ActiveSeats: 4,
					}, nil
				}

				avail, err := ledger.CheckAvailability(ctx, 1, 3)

				Expect(err).NotTo(HaveOccurred())
				Expect(avail.Available).To(BeFalse())
				Expect(avail.Message).To(ContainSubstring("3 seats requested"))
				Expect(avail.Message).To(ContainSubstring("1 of 5"))
			})
		})

		Context("when the subscription is canceled", func() {
			It("reports unavailable even with free seats", func() {
				subs.getByOrganizationFn = func(_ context.Context, _ int64) (*model.Subscription, error) {
					return &model.Subscription{
						Status:      model.SubscriptionStatusCanceled,
						MaxSeats:    10,
						ActiveSeats: 2,
					}, nil
				}

				avail, err := ledger.CheckAvailability(ctx, 1, 1)

				Expect(err).NotTo(HaveOccurred())
				Expect(avail.Available).To(BeFalse())
				Expect(avail.Message).To(ContainSubstring("canceled"))
			})
		})

		Context("when no subscription exists", func() {
			It("reports unavailable instead of failing", func() {
				avail, err := ledger.CheckAvailability(ctx, 1, 1)

				Expect(err).NotTo(HaveOccurred())
				Expect(avail.Available).To(BeFalse())
				Expect(avail.Message).To(ContainSubstring("no subscription"))
			})
		})

		It("treats a non-positive request as one seat", func() {
			subs.getByOrganizationFn = func(_ context.Context, _ int64) (*model.Subscription, error) {
				return &model.Subscription{
					Status:      model.SubscriptionStatusTrialing,
					MaxSeats:    5,
					ActiveSeats: 4,
				}, nil
			}

			avail, err := ledger.CheckAvailability(ctx, 1, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(avail.Available).To(BeTrue())
		})
	})

	Describe("Increment", func() {
		It("passes ErrSeatLimitExceeded through", func() {
			subs.incrementFn = func(_ context.Context, _ int64) (*model.Subscription, error) {
				return nil, store.ErrSeatLimitExceeded
			}

			err := ledger.Increment(ctx, 1)

			Expect(err).To(MatchError(store.ErrSeatLimitExceeded))
		})
	})

	Describe("Decrement", func() {
		It("passes ErrSeatUnderflow through", func() {
			subs.decrementFn = func(_ context.Context, _ int64) (*model.Subscription, error) {
				return nil, store.ErrSeatUnderflow
			}

			err := ledger.Decrement(ctx, 1)

			Expect(err).To(MatchError(store.ErrSeatUnderflow))
		})
	})
})
