package mdman

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ossidisc/mdman/pkg/netmd"
)

func newTestConfig(t *testing.T) *CanonicalConfig {
	t.Helper()

	config, err := NewConfig(zap.NewNop().Sugar(), nil)
	require.NoError(t, err)

	return config
}

func TestConfigDefaults(t *testing.T) {
	config := newTestConfig(t)
	config.populateFromViper()

	assert.Equal(t, 500*time.Millisecond, config.PollInterval)
	assert.Equal(t, 50*time.Millisecond, config.IdleTick)
	assert.Equal(t, 0x400, config.UploadChunkSize)
	assert.Equal(t, "lp4", config.UploadFormat)
	assert.True(t, config.Notifications)
	assert.Equal(t, "auto", config.Language)
}

func TestConfigInvalidValuesFallBack(t *testing.T) {
	config := newTestConfig(t)

	config.userConfig.Set(configKeyPollInterval, "-3s")
	config.userConfig.Set(configKeyIdleTick, 0)
	config.userConfig.Set(configKeyUploadChunkSize, -1)
	config.userConfig.Set(configKeyUploadFormat, "mp3")

	config.populateFromViper()

	assert.Equal(t, 500*time.Millisecond, config.PollInterval)
	assert.Equal(t, 50*time.Millisecond, config.IdleTick)
	assert.Equal(t, 0x400, config.UploadChunkSize)
	assert.Equal(t, "lp4", config.UploadFormat)
}

func TestConfigUploadFormatIsCaseInsensitive(t *testing.T) {
	config := newTestConfig(t)

	config.userConfig.Set(configKeyUploadFormat, "LP2")
	config.populateFromViper()

	assert.Equal(t, "lp2", config.UploadFormat)
}

func TestConfigSessionSettings(t *testing.T) {
	config := newTestConfig(t)

	config.userConfig.Set(configKeyPollInterval, "250ms")
	config.userConfig.Set(configKeyIdleTick, "10ms")
	config.userConfig.Set(configKeyUploadChunkSize, 2048)
	config.userConfig.Set(configKeyUploadFormat, "pcm")

	config.populateFromViper()

	settings := config.SessionSettings()
	assert.Equal(t, SessionSettings{
		PollInterval:    250 * time.Millisecond,
		IdleTick:        10 * time.Millisecond,
		UploadChunkSize: 2048,
		UploadFormat:    netmd.WireFormatPCM,
	}, settings)
}

func TestConfigReloadNotifiesSubscribers(t *testing.T) {
	config := newTestConfig(t)

	consumer := config.SubscribeToChanges()
	config.onConfigReloaded()

	select {
	case <-consumer:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified of the reload")
	}
}
