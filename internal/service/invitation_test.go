package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sproutlog.app/api/common/id"
	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/service"
	"sproutlog.app/api/internal/store"
)

var _ = Describe("InvitationService", func() {
	var (
		svc      service.InvitationService
		provider *mockProvider
		tx       *mockTxRunner
		producer *mockProducer
		ctx      context.Context
	)

	const (
		orgID   = int64(100)
		adminID = int64(200)
	)

	asRole := func(role model.OrganizationRole) {
		provider.members.getByOrgAndUser = func(_ context.Context, gotOrg, gotUser int64) (*model.Member, error) {
			if gotOrg == orgID && gotUser == adminID {
				return &model.Member{ID: 1, OrganizationID: orgID, UserID: adminID, Role: role}, nil
			}
			return nil, store.ErrNotFound
		}
	}

	withSeats := func(active, max int32) {
		provider.subs.getByOrganizationFn = func(_ context.Context, _ int64) (*model.Subscription, error) {
			return &model.Subscription{
				OrganizationID: orgID,
				Status:         model.SubscriptionStatusActive,
				ActiveSeats:    active,
				MaxSeats:       max,
			}, nil
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		provider = newMockProvider()
		tx = &mockTxRunner{provider: provider}
		producer = &mockProducer{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		svc = service.NewInvitationService(
			provider.invitations,
			provider.members,
			provider.users,
			service.NewSeatLedger(provider.subs),
			tx,
			producer,
		)
	})

	Describe("InviteEducators", func() {
		Context("when the caller is an admin and seats remain", func() {
			It("creates pending invitations with tokens and 7-day expiry", func() {
				asRole(model.RoleAdmin)
				withSeats(1, 5)

				result, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"amy@littleoaks.edu", "ben@littleoaks.edu"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invitations).To(HaveLen(2))
				Expect(result.Skipped).To(BeEmpty())

				for _, inv := range result.Invitations {
					Expect(inv.ID).NotTo(BeZero())
					Expect(inv.Token).NotTo(BeEmpty())
					Expect(inv.Status).To(Equal(model.InvitationStatusPending))
					Expect(inv.InvitedBy).To(Equal(adminID))
					Expect(inv.ExpiresAt).To(BeTemporally("~", time.Now().Add(7*24*time.Hour), time.Minute))
				}
				Expect(result.Invitations[0].Token).NotTo(Equal(result.Invitations[1].Token))
			})

			It("enqueues one email task per created invitation", func() {
				asRole(model.RoleAdmin)
				withSeats(1, 5)

				result, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"amy@littleoaks.edu", "ben@littleoaks.edu"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(producer.enqueued).To(HaveLen(2))
				Expect(producer.enqueued[0].InvitationID).To(Equal(result.Invitations[0].ID))
				Expect(producer.enqueued[0].Token).To(Equal(result.Invitations[0].Token))
			})

			It("normalizes and de-duplicates addresses", func() {
				asRole(model.RoleAdmin)
				withSeats(1, 5)

				result, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"  AMY@littleoaks.edu ", "amy@littleoaks.edu"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invitations).To(HaveLen(1))
				Expect(result.Invitations[0].Email).To(Equal("amy@littleoaks.edu"))
			})

			It("skips addresses that are already members", func() {
				asRole(model.RoleAdmin)
				withSeats(1, 5)
				provider.members.existsByEmailFn = func(_ context.Context, _ int64, email string) (bool, error) {
					return email == "ben@littleoaks.edu", nil
				}

				result, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"amy@littleoaks.edu", "ben@littleoaks.edu"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invitations).To(HaveLen(1))
				Expect(result.Skipped).To(HaveLen(1))
				Expect(result.Skipped[0].Email).To(Equal("ben@littleoaks.edu"))
				Expect(result.Skipped[0].Reason).To(ContainSubstring("already a member"))
			})

			It("skips addresses with an unexpired pending invitation", func() {
				asRole(model.RoleAdmin)
				withSeats(1, 5)
				provider.invitations.getPendingFn = func(_ context.Context, _ int64, email string) (*model.Invitation, error) {
					if email == "amy@littleoaks.edu" {
						return &model.Invitation{
							Email:     email,
							Status:    model.InvitationStatusPending,
							ExpiresAt: time.Now().Add(time.Hour),
						}, nil
					}
					return nil, store.ErrNotFound
				}

				result, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"amy@littleoaks.edu", "ben@littleoaks.edu"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invitations).To(HaveLen(1))
				Expect(result.Invitations[0].Email).To(Equal("ben@littleoaks.edu"))
				Expect(result.Skipped[0].Reason).To(ContainSubstring("pending invitation"))
			})

			It("re-invites past a pending invitation whose expiry has lapsed", func() {
				asRole(model.RoleAdmin)
				withSeats(1, 5)
				provider.invitations.getPendingFn = func(_ context.Context, _ int64, email string) (*model.Invitation, error) {
					return &model.Invitation{
						Email:     email,
						Status:    model.InvitationStatusPending,
						ExpiresAt: time.Now().Add(-time.Hour),
					}, nil
				}

				result, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"amy@littleoaks.edu"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invitations).To(HaveLen(1))
				Expect(result.Skipped).To(BeEmpty())
			})

			It("reports malformed addresses without failing the batch", func() {
				asRole(model.RoleAdmin)
				withSeats(1, 5)

				result, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"not-an-email", "amy@littleoaks.edu"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invitations).To(HaveLen(1))
				Expect(result.Skipped).To(HaveLen(1))
				Expect(result.Skipped[0].Email).To(Equal("not-an-email"))
			})

			It("returns the skip report without creating anything when every address is skipped", func() {
				asRole(model.RoleAdmin)
				provider.members.existsByEmailFn = func(_ context.Context, _ int64, _ string) (bool, error) {
					return true, nil
				}

				result, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"amy@littleoaks.edu"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invitations).To(BeEmpty())
				Expect(result.Skipped).To(HaveLen(1))
				Expect(tx.calls).To(BeZero())
			})
		})

		Context("when the batch exceeds the remaining seats", func() {
			It("rejects the whole batch and creates nothing", func() {
				asRole(model.RoleAdmin)
				withSeats(4, 5)

				result, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"amy@littleoaks.edu", "ben@littleoaks.edu"},
				})

				Expect(err).To(MatchError(service.ErrInsufficientSeats))
				Expect(result).To(BeNil())
				Expect(provider.invitations.created).To(BeEmpty())
				Expect(producer.enqueued).To(BeEmpty())
			})
		})

		Context("when the caller is only a member", func() {
			It("returns ErrPermissionDenied", func() {
				asRole(model.RoleMember)

				_, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"amy@littleoaks.edu"},
				})

				Expect(err).To(MatchError(service.ErrPermissionDenied))
			})
		})

		Context("when no address survives normalization", func() {
			It("returns ErrNoValidEmails", func() {
				asRole(model.RoleAdmin)

				_, err := svc.InviteEducators(ctx, service.InviteEducatorsInput{
					OrganizationID: orgID,
					InvitedBy:      adminID,
					Emails:         []string{"", "   "},
				})

				Expect(err).To(MatchError(service.ErrNoValidEmails))
			})
		})
	})

	Describe("ValidateInvitation", func() {
		It("returns the invitation while it is pending and unexpired", func() {
			provider.invitations.getByTokenFn = func(_ context.Context, token string) (*model.Invitation, error) {
				return &model.Invitation{
					ID:        7,
					Token:     token,
					Status:    model.InvitationStatusPending,
					ExpiresAt: time.Now().Add(time.Hour),
				}, nil
			}

			inv, err := svc.ValidateInvitation(ctx, "tok")

			Expect(err).NotTo(HaveOccurred())
			Expect(inv.ID).To(Equal(int64(7)))
		})

		It("returns ErrInviteNotFound for an unknown token", func() {
			_, err := svc.ValidateInvitation(ctx, "missing")
			Expect(err).To(MatchError(service.ErrInviteNotFound))
		})

		It("marks a pending invitation past its deadline expired on read", func() {
			provider.invitations.getByTokenFn = func(_ context.Context, token string) (*model.Invitation, error) {
				return &model.Invitation{
					ID:        7,
					Token:     token,
					Status:    model.InvitationStatusPending,
					ExpiresAt: time.Now().Add(-time.Minute),
				}, nil
			}

			_, err := svc.ValidateInvitation(ctx, "tok")

			Expect(err).To(MatchError(service.ErrInviteExpired))
			Expect(provider.invitations.markExpiredCalls).To(Equal(1))
		})

		It("maps terminal statuses to their errors", func() {
			statuses := map[model.InvitationStatus]error{
				model.InvitationStatusAccepted: service.ErrInviteAlreadyUsed,
				model.InvitationStatusCanceled: service.ErrInviteCanceled,
				model.InvitationStatusExpired:  service.ErrInviteExpired,
			}

			for status, expected := range statuses {
				status := status
				provider.invitations.getByTokenFn = func(_ context.Context, token string) (*model.Invitation, error) {
					return &model.Invitation{Token: token, Status: status, ExpiresAt: time.Now().Add(time.Hour)}, nil
				}

				_, err := svc.ValidateInvitation(ctx, "tok")
				Expect(err).To(MatchError(expected))
			}
			Expect(provider.invitations.markExpiredCalls).To(BeZero())
		})
	})

	Describe("AcceptInvitation", func() {
		const userID = int64(300)

		pendingInvite := func(email string) {
			provider.invitations.getByTokenFn = func(_ context.Context, token string) (*model.Invitation, error) {
				return &model.Invitation{
					ID:             7,
					OrganizationID: orgID,
					Email:          email,
					Token:          token,
					Status:         model.InvitationStatusPending,
					ExpiresAt:      time.Now().Add(time.Hour),
				}, nil
			}
			provider.invitations.acceptFn = func(_ context.Context, invID, by int64) (*model.Invitation, error) {
				return &model.Invitation{
					ID:             invID,
					OrganizationID: orgID,
					Email:          email,
					Status:         model.InvitationStatusAccepted,
					AcceptedBy:     &by,
					ExpiresAt:      time.Now().Add(time.Hour),
				}, nil
			}
		}

		userWithEmail := func(email string) {
			provider.users.getByIDFn = func(_ context.Context, gotID int64) (*model.User, error) {
				return &model.User{ID: gotID, Email: email}, nil
			}
		}

		It("accepts, admits the member and consumes a seat", func() {
			pendingInvite("amy@littleoaks.edu")
			userWithEmail("amy@littleoaks.edu")

			var createdMember *model.Member
			provider.members.createFn = func(_ context.Context, m *model.Member) error {
				createdMember = m
				return nil
			}

			result, err := svc.AcceptInvitation(ctx, "tok", userID)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Invitation.Status).To(Equal(model.InvitationStatusAccepted))
			Expect(*result.Invitation.AcceptedBy).To(Equal(userID))
			Expect(createdMember).NotTo(BeNil())
			Expect(createdMember.OrganizationID).To(Equal(orgID))
			Expect(createdMember.UserID).To(Equal(userID))
			Expect(createdMember.Role).To(Equal(model.RoleMember))
			Expect(provider.subs.incrementCalls).To(Equal(1))
		})

		It("matches the invited email case-insensitively", func() {
			pendingInvite("amy@littleoaks.edu")
			userWithEmail("AMY@LittleOaks.edu")

			_, err := svc.AcceptInvitation(ctx, "tok", userID)

			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a user whose email does not match", func() {
			pendingInvite("amy@littleoaks.edu")
			userWithEmail("someone-else@littleoaks.edu")

			_, err := svc.AcceptInvitation(ctx, "tok", userID)

			Expect(err).To(MatchError(service.ErrEmailMismatch))
			Expect(provider.subs.incrementCalls).To(BeZero())
		})

		It("rejects a user who is already a member", func() {
			pendingInvite("amy@littleoaks.edu")
			userWithEmail("amy@littleoaks.edu")
			provider.members.getByOrgAndUser = func(_ context.Context, _, _ int64) (*model.Member, error) {
				return &model.Member{OrganizationID: orgID, UserID: userID}, nil
			}

			_, err := svc.AcceptInvitation(ctx, "tok", userID)

			Expect(err).To(MatchError(service.ErrAlreadyMember))
		})

		It("fails without a seat when the ledger is full", func() {
			pendingInvite("amy@littleoaks.edu")
			userWithEmail("amy@littleoaks.edu")
			provider.subs.incrementFn = func(_ context.Context, _ int64) (*model.Subscription, error) {
				return nil, store.ErrSeatLimitExceeded
			}

			_, err := svc.AcceptInvitation(ctx, "tok", userID)

			Expect(err).To(MatchError(store.ErrSeatLimitExceeded))
		})

		It("reports an already-used invitation when losing the pending-transition race", func() {
			pendingInvite("amy@littleoaks.edu")
			userWithEmail("amy@littleoaks.edu")
			provider.invitations.acceptFn = func(_ context.Context, _, _ int64) (*model.Invitation, error) {
				return nil, store.ErrNotFound
			}

			_, err := svc.AcceptInvitation(ctx, "tok", userID)

			Expect(err).To(MatchError(service.ErrInviteAlreadyUsed))
		})
	})

	Describe("CancelInvitation", func() {
		invitationWithStatus := func(status model.InvitationStatus) {
			provider.invitations.getByIDFn = func(_ context.Context, invID int64) (*model.Invitation, error) {
				return &model.Invitation{
					ID:             invID,
					OrganizationID: orgID,
					Status:         status,
					ExpiresAt:      time.Now().Add(time.Hour),
				}, nil
			}
			provider.invitations.cancelFn = func(_ context.Context, invID int64) (*model.Invitation, error) {
				return &model.Invitation{ID: invID, Status: model.InvitationStatusCanceled}, nil
			}
		}

		It("cancels a pending invitation", func() {
			asRole(model.RoleAdmin)
			invitationWithStatus(model.InvitationStatusPending)

			canceled, err := svc.CancelInvitation(ctx, 7, adminID)

			Expect(err).NotTo(HaveOccurred())
			Expect(canceled).To(BeTrue())
		})

		It("is a no-op on an already-terminal invitation", func() {
			asRole(model.RoleAdmin)
			invitationWithStatus(model.InvitationStatusAccepted)

			canceled, err := svc.CancelInvitation(ctx, 7, adminID)

			Expect(err).NotTo(HaveOccurred())
			Expect(canceled).To(BeFalse())
			Expect(provider.invitations.cancelCalls).To(BeZero())
		})

		It("is a no-op on an unknown invitation", func() {
			asRole(model.RoleAdmin)

			canceled, err := svc.CancelInvitation(ctx, 7, adminID)

			Expect(err).NotTo(HaveOccurred())
			Expect(canceled).To(BeFalse())
			Expect(provider.invitations.cancelCalls).To(BeZero())
		})

		It("denies non-admin callers", func() {
			asRole(model.RoleMember)
			invitationWithStatus(model.InvitationStatusPending)

			_, err := svc.CancelInvitation(ctx, 7, adminID)

			Expect(err).To(MatchError(service.ErrPermissionDenied))
		})
	})
})
