package registration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testEntry(email string, code string, isAdmin bool) *Registration {
	phone := "+905050505050"
	return NewEntry(email, "hashed", "Test", "User", &phone, nil, code, "10.0.0.1", isAdmin)
}

func TestMemoryStoreAddAndGet(t *testing.T) {
	store := NewMemoryStore(0)
	err := store.Add(context.Background(), testEntry("Blub@Kimlik.local", "123456", false))
	assert.NoError(t, err)

	reg, err := store.Get(context.Background(), "blub@kimlik.local", false)
	assert.NoError(t, err)
	if assert.NotNil(t, reg) {
		assert.Equal(t, "blub@kimlik.local", reg.Email)
		assert.Equal(t, "hashed", reg.HashedPassword)
		assert.Equal(t, "123456", reg.VerificationCode)
		assert.Equal(t, "10.0.0.1", reg.CreatedByIP)
		assert.False(t, reg.IsAdmin)
	}
}

func TestMemoryStoreGetAbsent(t *testing.T) {
	store := NewMemoryStore(0)
	reg, err := store.Get(context.Background(), "blub@kimlik.local", false)
	assert.NoError(t, err)
	assert.Nil(t, reg)
}

func TestMemoryStoreAddReplacesPriorEntry(t *testing.T) {
	store := NewMemoryStore(0)
	_ = store.Add(context.Background(), testEntry("blub@kimlik.local", "111111", false))
	_ = store.Add(context.Background(), testEntry("blub@kimlik.local", "222222", false))

	reg, err := store.Get(context.Background(), "blub@kimlik.local", false)
	assert.NoError(t, err)
	if assert.NotNil(t, reg) {
		assert.Equal(t, "222222", reg.VerificationCode)
	}

	//the old code is no longer redeemable
	gone, err := store.VerifyAndRemove(context.Background(), "blub@kimlik.local", "111111", false)
	assert.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemoryStoreGetExpired(t *testing.T) {
	store := NewMemoryStore(0)
	entry := testEntry("blub@kimlik.local", "123456", false)
	entry.ExpiresAt = time.Now().UTC().Add(-time.Minute).Unix()
	_ = store.Add(context.Background(), entry)

	reg, err := store.Get(context.Background(), "blub@kimlik.local", false)
	assert.NoError(t, err)
	assert.Nil(t, reg)
}

func TestMemoryStoreVerifyAndRemove(t *testing.T) {
	store := NewMemoryStore(0)
	_ = store.Add(context.Background(), testEntry("blub@kimlik.local", "123456", false))

	reg, err := store.VerifyAndRemove(context.Background(), "blub@kimlik.local", "123456", false)
	assert.NoError(t, err)
	if assert.NotNil(t, reg) {
		assert.Equal(t, "blub@kimlik.local", reg.Email)
	}

	//the entry is consumed
	reg, err = store.Get(context.Background(), "blub@kimlik.local", false)
	assert.NoError(t, err)
	assert.Nil(t, reg)
}

func TestMemoryStoreVerifyWrongCodeLeavesEntry(t *testing.T) {
	store := NewMemoryStore(0)
	_ = store.Add(context.Background(), testEntry("blub@kimlik.local", "123456", false))

	reg, err := store.VerifyAndRemove(context.Background(), "blub@kimlik.local", "654321", false)
	assert.NoError(t, err)
	assert.Nil(t, reg)

	//another try with the right code still works
	reg, err = store.VerifyAndRemove(context.Background(), "blub@kimlik.local", "123456", false)
	assert.NoError(t, err)
	assert.NotNil(t, reg)
}

func TestMemoryStoreVerifyExpiredEntryRemoved(t *testing.T) {
	store := NewMemoryStore(0)
	entry := testEntry("blub@kimlik.local", "123456", false)
	entry.ExpiresAt = time.Now().UTC().Add(-time.Minute).Unix()
	_ = store.Add(context.Background(), entry)

	reg, err := store.VerifyAndRemove(context.Background(), "blub@kimlik.local", "123456", false)
	assert.NoError(t, err)
	assert.Nil(t, reg)

	stats, err := store.Stats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
}

func TestMemoryStoreCustomerAndAdminCoexist(t *testing.T) {
	store := NewMemoryStore(0)
	_ = store.Add(context.Background(), testEntry("blub@kimlik.local", "111111", false))
	_ = store.Add(context.Background(), testEntry("blub@kimlik.local", "222222", true))

	customer, err := store.Get(context.Background(), "blub@kimlik.local", false)
	assert.NoError(t, err)
	if assert.NotNil(t, customer) {
		assert.Equal(t, "111111", customer.VerificationCode)
	}

	admin, err := store.Get(context.Background(), "blub@kimlik.local", true)
	assert.NoError(t, err)
	if assert.NotNil(t, admin) {
		assert.Equal(t, "222222", admin.VerificationCode)
	}

	//consuming the customer entry leaves the admin one alone
	_, err = store.VerifyAndRemove(context.Background(), "blub@kimlik.local", "111111", false)
	assert.NoError(t, err)
	admin, err = store.Get(context.Background(), "blub@kimlik.local", true)
	assert.NoError(t, err)
	assert.NotNil(t, admin)
}

func TestMemoryStoreUpdateCode(t *testing.T) {
	store := NewMemoryStore(0)
	entry := testEntry("blub@kimlik.local", "111111", false)
	entry.ExpiresAt = time.Now().UTC().Add(time.Hour).Unix()
	_ = store.Add(context.Background(), entry)

	ok, err := store.UpdateCode(context.Background(), "blub@kimlik.local", "222222", false)
	assert.NoError(t, err)
	assert.True(t, ok)

	reg, err := store.Get(context.Background(), "blub@kimlik.local", false)
	assert.NoError(t, err)
	if assert.NotNil(t, reg) {
		assert.Equal(t, "222222", reg.VerificationCode)
		//the TTL starts over
		assert.Greater(t, reg.ExpiresAt, time.Now().UTC().Add(time.Hour).Unix())
	}
}

func TestMemoryStoreUpdateCodeNoEntry(t *testing.T) {
	store := NewMemoryStore(0)
	ok, err := store.UpdateCode(context.Background(), "blub@kimlik.local", "222222", false)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreStampsConfiguredTTL(t *testing.T) {
	store := NewMemoryStore(2 * time.Hour)
	_ = store.Add(context.Background(), testEntry("blub@kimlik.local", "123456", false))

	reg, err := store.Get(context.Background(), "blub@kimlik.local", false)
	assert.NoError(t, err)
	if assert.NotNil(t, reg) {
		assert.InDelta(t, time.Now().UTC().Add(2*time.Hour).Unix(), reg.ExpiresAt, 60)
	}
}

func TestMemoryStoreDefaultsTTL(t *testing.T) {
	store := NewMemoryStore(0)
	_ = store.Add(context.Background(), testEntry("blub@kimlik.local", "123456", false))

	reg, err := store.Get(context.Background(), "blub@kimlik.local", false)
	assert.NoError(t, err)
	if assert.NotNil(t, reg) {
		assert.InDelta(t, time.Now().UTC().Add(DefaultTTL).Unix(), reg.ExpiresAt, 60)
	}
}

func TestMemoryStoreStatsSkipsExpired(t *testing.T) {
	store := NewMemoryStore(0)
	_ = store.Add(context.Background(), testEntry("live@kimlik.local", "111111", false))
	stale := testEntry("stale@kimlik.local", "222222", false)
	stale.ExpiresAt = time.Now().UTC().Add(-time.Minute).Unix()
	_ = store.Add(context.Background(), stale)

	stats, err := store.Stats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Len(t, stats.Keys, 1)
}

func TestKeyIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, Key("Blub@Kimlik.local ", false), Key("blub@kimlik.local", false))
	assert.NotEqual(t, Key("blub@kimlik.local", false), Key("blub@kimlik.local", true))
}
