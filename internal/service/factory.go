package service

import (
	"sproutlog.app/api/core/config"
	"sproutlog.app/api/internal/queue"
	"sproutlog.app/api/internal/store"
)

type Services struct {
	stores    *store.Stores
	txRunner  TxRunner
	producer  queue.Producer
	workOSCfg config.WorkOSConfig
}

func NewServices(stores *store.Stores, txRunner TxRunner, producer queue.Producer, workOSCfg config.WorkOSConfig) *Services {
	return &Services{
		stores:    stores,
		txRunner:  txRunner,
		producer:  producer,
		workOSCfg: workOSCfg,
	}
}

func (s *Services) Organizations() OrganizationService {
	return NewOrganizationService(s.stores.Organizations(), s.txRunner)
}

func (s *Services) Seats() SeatLedger {
	return NewSeatLedger(s.stores.Subscriptions())
}

func (s *Services) Invitations() InvitationService {
	return NewInvitationService(
		s.stores.Invitations(),
		s.stores.Members(),
		s.stores.Users(),
		s.Seats(),
		s.txRunner,
		s.producer,
	)
}

func (s *Services) Membership() MembershipService {
	return NewMembershipService(s.stores.Members(), s.txRunner)
}

func (s *Services) Auth() AuthService {
	return NewAuthService(
		s.stores.Users(),
		s.stores.Sessions(),
		s.stores.Members(),
		s.workOSCfg,
	)
}
