package core

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinfarm/entity"
)

type fakeDB struct {
	users       int64
	usersErr    error
	channels    []*entity.Channel
	channelsErr error
}

func (f *fakeDB) CountUsers() (int64, error) {
	return f.users, f.usersErr
}

func (f *fakeDB) GetChannels() ([]*entity.Channel, error) {
	return f.channels, f.channelsErr
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatus(t *testing.T) {
	db := &fakeDB{
		users: 42,
		channels: []*entity.Channel{
			{Name: "coinfarm_news", ChatId: -100},
		},
	}
	c := New(db, "dev", testLog())

	status, err := c.Status()
	require.NoError(t, err)

	assert.Equal(t, "dev", status.Env)
	assert.Equal(t, int64(42), status.Users)
	assert.Len(t, status.Channels, 1)
	assert.NotEmpty(t, status.Uptime)
}

func TestStatus_DatabaseFailure(t *testing.T) {
	c := New(&fakeDB{usersErr: errors.New("timeout")}, "dev", testLog())
	_, err := c.Status()
	assert.Error(t, err)

	c = New(&fakeDB{channelsErr: errors.New("timeout")}, "dev", testLog())
	_, err = c.Status()
	assert.Error(t, err)
}

func TestStatus_NilDatabase(t *testing.T) {
	c := New(nil, "dev", testLog())
	_, err := c.Status()
	assert.Error(t, err)
}
