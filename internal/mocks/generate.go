// Package mocks provides gomock implementations of the repository and port
// interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	lots := mocks.NewMockLotRepository(ctrl)
//	lots.EXPECT().GetByID(gomock.Any(), int64(7)).Return(lot, nil)
package mocks

// Repositories from internal/core.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_repository_mock.go github.com/lotledger/lotledger/internal/core IdentityRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=lot_repository_mock.go github.com/lotledger/lotledger/internal/core LotRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=item_repository_mock.go github.com/lotledger/lotledger/internal/core ItemRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=bid_repository_mock.go github.com/lotledger/lotledger/internal/core BidRepository

// Ports from internal/ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/lotledger/lotledger/internal/ports SessionStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_provider_mock.go github.com/lotledger/lotledger/internal/ports AuthProvider
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/lotledger/lotledger/internal/ports IdentityProvider
