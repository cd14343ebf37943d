package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/private-content-market/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockObjectStore implements interfaces.ObjectStore for testing
type MockObjectStore struct {
	mock.Mock
	name string
}

func (m *MockObjectStore) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(interfaces.StoredObject), args.Error(1)
}

func (m *MockObjectStore) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	args := m.Called(ctx, key, obj)
	return args.Error(0)
}

func (m *MockObjectStore) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockObjectStore) Name() string {
	return m.name
}

func (m *MockObjectStore) LocationURI() string {
	return "mock:"
}

func TestMultiStorageBackend_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{
			name:     "all backends available",
			backends: []bool{true, true, true},
			expected: true,
		},
		{
			name:     "some backends available",
			backends: []bool{false, true, false},
			expected: false,
		},
		{
			name:     "no backends available",
			backends: []bool{false, false, false},
			expected: false,
		},
		{
			name:     "no backends",
			backends: []bool{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.ObjectStore
			for i, available := range tt.backends {
				mockStorage := &MockObjectStore{name: fmt.Sprintf("mock-A%x", i)}
				mockStorage.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, mockStorage)
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			multi := NewMultiStorageBackend(backends, logger)

			result := multi.Available(context.Background())
			assert.Equal(t, tt.expected, result)

			for _, backend := range backends {
				mockStorage := backend.(*MockObjectStore)
				mockStorage.AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Get(t *testing.T) {
	testKey := interfaces.ComputeAssetID([]byte("file1")).ContentKey()
	testObj := interfaces.StoredObject{OriginalName: "a.txt", MimeType: "text/plain", CipherText: []byte("ct")}
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.ObjectStore
		expectedObj   interfaces.StoredObject
		expectedError error
	}{
		{
			name: "first backend successful",
			setupMocks: func() []interfaces.ObjectStore {
				mock1 := &MockObjectStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testKey).Return(testObj, nil)

				mock2 := &MockObjectStore{name: "mock-B"}
				// This mock should not be called as the first one succeeds

				return []interfaces.ObjectStore{mock1, mock2}
			},
			expectedObj: testObj,
		},
		{
			name: "first backend fails, second succeeds",
			setupMocks: func() []interfaces.ObjectStore {
				mock1 := &MockObjectStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testKey).Return(interfaces.StoredObject{}, testErr)

				mock2 := &MockObjectStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testKey).Return(testObj, nil)

				return []interfaces.ObjectStore{mock1, mock2}
			},
			expectedObj: testObj,
		},
		{
			name: "all backends report not found",
			setupMocks: func() []interfaces.ObjectStore {
				mock1 := &MockObjectStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testKey).Return(interfaces.StoredObject{}, interfaces.ErrContentNotFound)

				mock2 := &MockObjectStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testKey).Return(interfaces.StoredObject{}, interfaces.ErrContentNotFound)

				return []interfaces.ObjectStore{mock1, mock2}
			},
			expectedError: interfaces.ErrContentNotFound,
		},
		{
			name: "not found and failure is unavailable",
			setupMocks: func() []interfaces.ObjectStore {
				mock1 := &MockObjectStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testKey).Return(interfaces.StoredObject{}, interfaces.ErrContentNotFound)

				mock2 := &MockObjectStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testKey).Return(interfaces.StoredObject{}, testErr)

				return []interfaces.ObjectStore{mock1, mock2}
			},
			expectedError: interfaces.ErrBackendUnavailable,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.ObjectStore {
				mock1 := &MockObjectStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)
				// Get should not be called

				mock2 := &MockObjectStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testKey).Return(testObj, nil)

				return []interfaces.ObjectStore{mock1, mock2}
			},
			expectedObj: testObj,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			multi := NewMultiStorageBackend(backends, logger)

			obj, err := multi.Get(context.Background(), testKey)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedObj, obj)

			for _, backend := range backends {
				mock := backend.(*MockObjectStore)
				mock.AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Put(t *testing.T) {
	testKey := interfaces.ComputeAssetID([]byte("file1")).PublicKeySlotKey()
	testObj := interfaces.StoredObject{OriginalName: "0xabc", CipherText: []byte("pub")}
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.ObjectStore
		expectedError bool
	}{
		{
			name: "all backends successful",
			setupMocks: func() []interfaces.ObjectStore {
				mock1 := &MockObjectStore{name: "mock-A"}
				mock1.On("Put", mock.Anything, testKey, testObj).Return(nil)

				mock2 := &MockObjectStore{name: "mock-B"}
				mock2.On("Put", mock.Anything, testKey, testObj).Return(nil)

				return []interfaces.ObjectStore{mock1, mock2}
			},
		},
		{
			name: "one backend failing fails the write",
			setupMocks: func() []interfaces.ObjectStore {
				mock1 := &MockObjectStore{name: "mock-A"}
				mock1.On("Put", mock.Anything, testKey, testObj).Return(nil)

				mock2 := &MockObjectStore{name: "mock-B"}
				mock2.On("Put", mock.Anything, testKey, testObj).Return(testErr)

				return []interfaces.ObjectStore{mock1, mock2}
			},
			expectedError: true,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.ObjectStore {
				mock1 := &MockObjectStore{name: "mock-A"}
				mock1.On("Put", mock.Anything, testKey, testObj).Return(testErr)

				mock2 := &MockObjectStore{name: "mock-B"}
				mock2.On("Put", mock.Anything, testKey, testObj).Return(testErr)

				return []interfaces.ObjectStore{mock1, mock2}
			},
			expectedError: true,
		},
		{
			name: "no backends",
			setupMocks: func() []interfaces.ObjectStore {
				return nil
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			multi := NewMultiStorageBackend(backends, logger)

			err := multi.Put(context.Background(), testKey, testObj)

			if tt.expectedError {
				assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
			} else {
				assert.NoError(t, err)
			}

			for _, backend := range backends {
				mock := backend.(*MockObjectStore)
				mock.AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_RealBackends(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryBackend("a", testLogger())
	b := NewMemoryBackend("b", testLogger())
	multi := NewMultiStorageBackend([]interfaces.ObjectStore{a, b}, testLogger())

	obj := interfaces.StoredObject{OriginalName: "doc", CipherText: []byte("v1")}
	assert.NoError(t, multi.Put(ctx, "key", obj))

	for _, backend := range []*MemoryBackend{a, b} {
		got, err := backend.Get(ctx, "key")
		assert.NoError(t, err)
		assert.Equal(t, obj, got)
	}

	assert.ErrorIs(t, multi.Put(ctx, "bad/key", obj), interfaces.ErrInvalidKey)
	assert.Contains(t, multi.LocationURI(), "memory://a")
}
