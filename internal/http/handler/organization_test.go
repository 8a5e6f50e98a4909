package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sproutlog.app/api/internal/http/handler"
	"sproutlog.app/api/internal/http/middleware"
	"sproutlog.app/api/internal/model"
	"sproutlog.app/api/internal/service"
	"sproutlog.app/api/internal/store"
)

var _ = Describe("OrganizationHandler", func() {
	var (
		router     *gin.Engine
		orgSvc     *mockOrganizationService
		memberSvc  *mockMembershipService
		seatLedger *mockSeatLedger
		authSvc    *mockAuthService
	)

	withSession := func(req *http.Request) *http.Request {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "12345"})
		return req
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		orgSvc = &mockOrganizationService{}
		memberSvc = &mockMembershipService{}
		seatLedger = &mockSeatLedger{}
		authSvc = &mockAuthService{
			userContext: &service.UserContext{
				User: &model.User{ID: 200, Name: "Dana Brooks", Email: "dana@littleoaks.edu"},
			},
		}
		h := handler.NewOrganizationHandler(orgSvc, memberSvc, seatLedger)

		orgs := router.Group("/api/v1/organizations", middleware.RequireSession(authSvc))
		{
			orgs.POST("", h.Create)
			orgs.GET("/:orgID", h.Get)
			orgs.GET("/:orgID/members", h.Members)
			orgs.DELETE("/:orgID/members/:memberID", h.RemoveMember)
			orgs.POST("/:orgID/transfer-ownership", h.TransferOwnership)
			orgs.GET("/:orgID/seats", h.SeatAvailability)
		}
	})

	Describe("Create", func() {
		It("returns 201 with the organization and its subscription", func() {
			orgSvc.createFn = func(_ context.Context, in service.CreateOrganizationInput) (*service.CreateOrganizationResult, error) {
				Expect(in.Name).To(Equal("Little Oaks Preschool"))
				Expect(in.Type).To(Equal(model.OrganizationTypeSchool))
				Expect(in.OwnerUserID).To(Equal(int64(200)))
				return &service.CreateOrganizationResult{
					Organization: &model.Organization{
						ID:   100,
						Name: in.Name,
						Slug: "little-oaks-preschool",
						Type: in.Type,
					},
					Subscription: &model.Subscription{
						OrganizationID: 100,
						Plan:           model.PlanTrial,
						Status:         model.SubscriptionStatusTrialing,
						MaxSeats:       5,
						ActiveSeats:    1,
					},
					Owner: &model.Member{ID: 1, OrganizationID: 100, UserID: 200, Role: model.RoleOwner},
				}, nil
			}

			body, _ := json.Marshal(map[string]string{
				"name": "Little Oaks Preschool",
				"type": "school",
			})
			req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/organizations", bytes.NewBuffer(body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusCreated))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			org := resp["organization"].(map[string]any)
			Expect(org["slug"]).To(Equal("little-oaks-preschool"))
			sub := resp["subscription"].(map[string]any)
			Expect(sub["max_seats"]).To(BeNumerically("==", 5))
		})

		It("returns 400 when name is missing", func() {
			body, _ := json.Marshal(map[string]string{"type": "school"})
			req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/organizations", bytes.NewBuffer(body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 on an unknown organization type", func() {
			body, _ := json.Marshal(map[string]string{
				"name": "Little Oaks",
				"type": "franchise",
			})
			req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/organizations", bytes.NewBuffer(body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 401 without a session", func() {
			body, _ := json.Marshal(map[string]string{"name": "Little Oaks"})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/organizations", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Get", func() {
		It("returns 200 with the organization", func() {
			orgSvc.getFn = func(_ context.Context, orgID int64) (*model.Organization, error) {
				Expect(orgID).To(Equal(int64(100)))
				return &model.Organization{ID: 100, Name: "Little Oaks", Slug: "little-oaks"}, nil
			}

			req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/organizations/100", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("returns 404 for an unknown organization", func() {
			orgSvc.getFn = func(_ context.Context, _ int64) (*model.Organization, error) {
				return nil, store.ErrNotFound
			}

			req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/organizations/9999", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a malformed id", func() {
			req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/organizations/not-a-number", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Members", func() {
		It("returns 200 with the roster for a member", func() {
			memberSvc.organizationMembersFn = func(_ context.Context, orgID int64) ([]model.MemberProfile, error) {
				Expect(orgID).To(Equal(int64(100)))
				return []model.MemberProfile{
					{MemberID: 1, UserID: 200, Name: "Dana Brooks", Email: "dana@littleoaks.edu", Role: model.RoleOwner, JoinedAt: time.Now()},
					{MemberID: 2, UserID: 300, Name: "Amy Chen", Email: "amy@littleoaks.edu", Role: model.RoleMember, JoinedAt: time.Now()},
				}, nil
			}

			req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/organizations/100/members", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["members"].([]any)).To(HaveLen(2))
		})

		It("returns 403 for a non-member", func() {
			memberSvc.checkPermissionFn = func(_ context.Context, _, _ int64, _ model.OrganizationRole) (bool, error) {
				return false, nil
			}

			req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/organizations/100/members", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusForbidden))
		})
	})

	Describe("SeatAvailability", func() {
		It("returns 200 with availability for the requested count", func() {
			seatLedger.checkAvailabilityFn = func(_ context.Context, orgID int64, requested int32) (service.SeatAvailability, error) {
				Expect(orgID).To(Equal(int64(100)))
				Expect(requested).To(Equal(int32(3)))
				return service.SeatAvailability{Available: true, MaxSeats: 5, ActiveSeats: 2}, nil
			}

			req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/organizations/100/seats?requested=3", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["available"]).To(BeTrue())
		})

		It("defaults to one seat when requested is omitted", func() {
			seatLedger.checkAvailabilityFn = func(_ context.Context, _ int64, requested int32) (service.SeatAvailability, error) {
				Expect(requested).To(Equal(int32(1)))
				return service.SeatAvailability{Available: true, MaxSeats: 5, ActiveSeats: 2}, nil
			}

			req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/organizations/100/seats", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("returns 400 for a non-positive requested count", func() {
			req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/organizations/100/seats?requested=0", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("reports unavailable without error when the ledger is full", func() {
			seatLedger.checkAvailabilityFn = func(_ context.Context, _ int64, _ int32) (service.SeatAvailability, error) {
				return service.SeatAvailability{
					Available:   false,
					MaxSeats:    5,
					ActiveSeats: 5,
					Message:     "1 seats requested but only 0 of 5 remain",
				}, nil
			}

			req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/organizations/100/seats", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["available"]).To(BeFalse())
			Expect(resp["message"]).NotTo(BeEmpty())
		})
	})

	Describe("RemoveMember", func() {
		It("returns 204 on success", func() {
			memberSvc.removeEducatorFn = func(_ context.Context, orgID, memberID, actingUserID int64) error {
				Expect(orgID).To(Equal(int64(100)))
				Expect(memberID).To(Equal(int64(2)))
				Expect(actingUserID).To(Equal(int64(200)))
				return nil
			}

			req := withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/organizations/100/members/2", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNoContent))
		})

		It("returns 409 when removing the owner", func() {
			memberSvc.removeEducatorFn = func(_ context.Context, _, _, _ int64) error {
				return service.ErrOwnerRemoval
			}

			req := withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/organizations/100/members/1", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("returns 403 for a non-admin caller", func() {
			memberSvc.removeEducatorFn = func(_ context.Context, _, _, _ int64) error {
				return service.ErrPermissionDenied
			}

			req := withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/organizations/100/members/2", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusForbidden))
		})

		It("returns 404 for an unknown member", func() {
			memberSvc.removeEducatorFn = func(_ context.Context, _, _, _ int64) error {
				return service.ErrMemberNotFound
			}

			req := withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/organizations/100/members/9999", nil))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("TransferOwnership", func() {
		It("returns 200 on success and threads the reason through", func() {
			memberSvc.transferOwnershipFn = func(_ context.Context, in service.TransferOwnershipInput) error {
				Expect(in.OrganizationID).To(Equal(int64(100)))
				Expect(in.CurrentOwnerUserID).To(Equal(int64(200)))
				Expect(in.NewOwnerUserID).To(Equal(int64(300)))
				Expect(in.Reason).To(Equal("director stepping down"))
				return nil
			}

			body, _ := json.Marshal(map[string]string{
				"new_owner_user_id": "300",
				"reason":            "director stepping down",
			})
			req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/organizations/100/transfer-ownership", bytes.NewBuffer(body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("returns 403 when the caller is not the owner", func() {
			memberSvc.transferOwnershipFn = func(_ context.Context, _ service.TransferOwnershipInput) error {
				return service.ErrNotOwner
			}

			body, _ := json.Marshal(map[string]string{"new_owner_user_id": "300"})
			req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/organizations/100/transfer-ownership", bytes.NewBuffer(body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusForbidden))
		})

		It("returns 409 when the target is not a member", func() {
			memberSvc.transferOwnershipFn = func(_ context.Context, _ service.TransferOwnershipInput) error {
				return service.ErrNotAMember
			}

			body, _ := json.Marshal(map[string]string{"new_owner_user_id": "300"})
			req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/organizations/100/transfer-ownership", bytes.NewBuffer(body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("returns 400 when the body is missing the new owner", func() {
			body, _ := json.Marshal(map[string]string{})
			req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/organizations/100/transfer-ownership", bytes.NewBuffer(body)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
