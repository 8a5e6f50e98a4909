package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/service"
	"sproutlog.app/api/internal/store"
)

var _ = Describe("MembershipService", func() {
	var (
		svc      service.MembershipService
		provider *mockProvider
		tx       *mockTxRunner
		ctx      context.Context
	)

	const (
		orgID       = int64(100)
		ownerUserID = int64(201)
		adminUserID = int64(202)
	)

	membersByUser := func(members map[int64]*model.Member) {
		provider.members.getByOrgAndUser = func(_ context.Context, gotOrg, gotUser int64) (*model.Member, error) {
			if gotOrg != orgID {
				return nil, store.ErrNotFound
			}
			if m, ok := members[gotUser]; ok {
				return m, nil
			}
			return nil, store.ErrNotFound
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		provider = newMockProvider()
		tx = &mockTxRunner{provider: provider}
		svc = service.NewMembershipService(provider.members, tx)
	})

	Describe("CheckPermission", func() {
		It("orders roles member < admin < owner", func() {
			membersByUser(map[int64]*model.Member{
				ownerUserID: {ID: 1, OrganizationID: orgID, UserID: ownerUserID, Role: model.RoleOwner},
				adminUserID: {ID: 2, OrganizationID: orgID, UserID: adminUserID, Role: model.RoleAdmin},
				300:         {ID: 3, OrganizationID: orgID, UserID: 300, Role: model.RoleMember},
			})

			ownerHasOwner, err := svc.CheckPermission(ctx, orgID, ownerUserID, model.RoleOwner)
			Expect(err).NotTo(HaveOccurred())
			Expect(ownerHasOwner).To(BeTrue())

			adminHasAdmin, err := svc.CheckPermission(ctx, orgID, adminUserID, model.RoleAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(adminHasAdmin).To(BeTrue())

			adminHasOwner, err := svc.CheckPermission(ctx, orgID, adminUserID, model.RoleOwner)
			Expect(err).NotTo(HaveOccurred())
			Expect(adminHasOwner).To(BeFalse())

			memberHasAdmin, err := svc.CheckPermission(ctx, orgID, 300, model.RoleAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(memberHasAdmin).To(BeFalse())
		})

		It("reports false for a non-member without erroring", func() {
			allowed, err := svc.CheckPermission(ctx, orgID, 999, model.RoleMember)

			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})
	})

	Describe("RemoveEducator", func() {
		target := &model.Member{ID: 10, OrganizationID: orgID, UserID: 300, Role: model.RoleMember}

		BeforeEach(func() {
			membersByUser(map[int64]*model.Member{
				adminUserID: {ID: 2, OrganizationID: orgID, UserID: adminUserID, Role: model.RoleAdmin},
				300:         target,
			})
			provider.members.getByIDFn = func(_ context.Context, memberID int64) (*model.Member, error) {
				if memberID == target.ID {
					return target, nil
				}
				return nil, store.ErrNotFound
			}
		})

		It("deletes the member and releases the seat in one transaction", func() {
			err := svc.RemoveEducator(ctx, orgID, target.ID, adminUserID)

			Expect(err).NotTo(HaveOccurred())
			Expect(provider.members.deleteCalls).To(Equal(1))
			Expect(provider.subs.decrementCalls).To(Equal(1))
			Expect(tx.calls).To(Equal(1))
		})

		It("refuses to remove the owner", func() {
			owner := &model.Member{ID: 1, OrganizationID: orgID, UserID: ownerUserID, Role: model.RoleOwner}
			provider.members.getByIDFn = func(_ context.Context, _ int64) (*model.Member, error) {
				return owner, nil
			}

			err := svc.RemoveEducator(ctx, orgID, owner.ID, adminUserID)

			Expect(err).To(MatchError(service.ErrOwnerRemoval))
			Expect(provider.members.deleteCalls).To(BeZero())
			Expect(provider.subs.decrementCalls).To(BeZero())
		})

		It("denies callers below admin", func() {
			membersByUser(map[int64]*model.Member{
				300: target,
			})

			err := svc.RemoveEducator(ctx, orgID, target.ID, 300)

			Expect(err).To(MatchError(service.ErrPermissionDenied))
		})

		It("treats a member from another organization as not found", func() {
			foreign := &model.Member{ID: 11, OrganizationID: orgID + 1, UserID: 400, Role: model.RoleMember}
			provider.members.getByIDFn = func(_ context.Context, _ int64) (*model.Member, error) {
				return foreign, nil
			}

			err := svc.RemoveEducator(ctx, orgID, foreign.ID, adminUserID)

			Expect(err).To(MatchError(service.ErrMemberNotFound))
		})

		It("surfaces a seat underflow instead of swallowing it", func() {
			provider.subs.decrementFn = func(_ context.Context, _ int64) (*model.Subscription, error) {
				return nil, store.ErrSeatUnderflow
			}

			err := svc.RemoveEducator(ctx, orgID, target.ID, adminUserID)

			Expect(err).To(MatchError(store.ErrSeatUnderflow))
		})
	})

	Describe("TransferOwnership", func() {
		owner := &model.Member{ID: 1, OrganizationID: orgID, UserID: ownerUserID, Role: model.RoleOwner}
		admin := &model.Member{ID: 2, OrganizationID: orgID, UserID: adminUserID, Role: model.RoleAdmin}

		BeforeEach(func() {
			membersByUser(map[int64]*model.Member{
				ownerUserID: owner,
				adminUserID: admin,
			})
		})

		It("demotes the old owner and promotes the new one atomically", func() {
			err := svc.TransferOwnership(ctx, service.TransferOwnershipInput{
				OrganizationID:     orgID,
				CurrentOwnerUserID: ownerUserID,
				NewOwnerUserID:     adminUserID,
				Reason:             "retiring at the end of term",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(tx.calls).To(Equal(1))
			Expect(provider.members.updateRoleCalls).To(HaveLen(2))
			Expect(provider.members.updateRoleCalls[0]).To(Equal(roleUpdate{memberID: owner.ID, role: model.RoleAdmin}))
			Expect(provider.members.updateRoleCalls[1]).To(Equal(roleUpdate{memberID: admin.ID, role: model.RoleOwner}))
		})

		It("rejects a caller who is not the owner", func() {
			err := svc.TransferOwnership(ctx, service.TransferOwnershipInput{
				OrganizationID:     orgID,
				CurrentOwnerUserID: adminUserID,
				NewOwnerUserID:     ownerUserID,
			})

			Expect(err).To(MatchError(service.ErrNotOwner))
			Expect(provider.members.updateRoleCalls).To(BeEmpty())
		})

		It("rejects a target who is not a member", func() {
			err := svc.TransferOwnership(ctx, service.TransferOwnershipInput{
				OrganizationID:     orgID,
				CurrentOwnerUserID: ownerUserID,
				NewOwnerUserID:     999,
			})

			Expect(err).To(MatchError(service.ErrNotAMember))
			Expect(provider.members.updateRoleCalls).To(BeEmpty())
		})

		It("rejects transferring to oneself", func() {
			err := svc.TransferOwnership(ctx, service.TransferOwnershipInput{
				OrganizationID:     orgID,
				CurrentOwnerUserID: ownerUserID,
				NewOwnerUserID:     ownerUserID,
			})

			Expect(err).To(MatchError(service.ErrAlreadyOwner))
			Expect(tx.calls).To(BeZero())
		})
	})
})
