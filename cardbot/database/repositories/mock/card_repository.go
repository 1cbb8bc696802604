package mock

import (
	context "context"
	reflect "reflect"

	models "github.com/blackbirdbot/cardbot/cardbot/database/models"
	gomock "go.uber.org/mock/gomock"
)

// MockCardRepository is a mock of CardRepository interface.
type MockCardRepository struct {
	ctrl     *gomock.Controller
	recorder *MockCardRepositoryMockRecorder
	isgomock struct{}
}

// MockCardRepositoryMockRecorder is the mock recorder for MockCardRepository.
type MockCardRepositoryMockRecorder struct {
	mock *MockCardRepository
}

// NewMockCardRepository creates a new mock instance.
func NewMockCardRepository(ctrl *gomock.Controller) *MockCardRepository {
	mock := &MockCardRepository{ctrl: ctrl}
	mock.recorder = &MockCardRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCardRepository) EXPECT() *MockCardRepositoryMockRecorder {
	return m.recorder
}

// Get mocks base method.
func (m *MockCardRepository) Get(ctx context.Context, cardID, series string) (*models.CardDefinition, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, cardID, series)
	ret0, _ := ret[0].(*models.CardDefinition)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Get indicates an expected call of Get.
func (mr *MockCardRepositoryMockRecorder) Get(ctx, cardID, series any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockCardRepository)(nil).Get), ctx, cardID, series)
}

// GetBySeries mocks base method.
func (m *MockCardRepository) GetBySeries(ctx context.Context, series string) ([]*models.CardDefinition, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBySeries", ctx, series)
	ret0, _ := ret[0].([]*models.CardDefinition)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetBySeries indicates an expected call of GetBySeries.
func (mr *MockCardRepositoryMockRecorder) GetBySeries(ctx, series any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBySeries", reflect.TypeOf((*MockCardRepository)(nil).GetBySeries), ctx, series)
}

// GetSeries mocks base method.
func (m *MockCardRepository) GetSeries(ctx context.Context) ([]*models.SeriesDefinition, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSeries", ctx)
	ret0, _ := ret[0].([]*models.SeriesDefinition)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetSeries indicates an expected call of GetSeries.
func (mr *MockCardRepositoryMockRecorder) GetSeries(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSeries", reflect.TypeOf((*MockCardRepository)(nil).GetSeries), ctx)
}

// UpsertSeries mocks base method.
func (m *MockCardRepository) UpsertSeries(ctx context.Context, series *models.SeriesDefinition, cards []*models.CardDefinition) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpsertSeries", ctx, series, cards)
	ret0, _ := ret[0].(error)
	return ret0
}

// UpsertSeries indicates an expected call of UpsertSeries.
func (mr *MockCardRepositoryMockRecorder) UpsertSeries(ctx, series, cards any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpsertSeries", reflect.TypeOf((*MockCardRepository)(nil).UpsertSeries), ctx, series, cards)
}
