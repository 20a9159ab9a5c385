package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSource struct {
	channels []string
	skip     bool
}

func (s stubSource) SponsorChannels() []string { return s.channels }
func (s stubSource) SkipCheck() bool           { return s.skip }

type stubOracle struct {
	members map[string]bool
	err     error
	delay   time.Duration
}

func (o *stubOracle) IsMember(ctx context.Context, _ int64, channel string) (bool, error) {
	if o.delay > 0 {
		select {
		case <-time.After(o.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if o.err != nil {
		return false, o.err
	}
	return o.members[channel], nil
}

func TestChecker_Check(t *testing.T) {
	tests := []struct {
		name   string
		source stubSource
		oracle *stubOracle
		want   Verdict
	}{
		{
			name:   "no channels",
			source: stubSource{},
			oracle: &stubOracle{err: errors.New("must not be called")},
			want:   VerdictMember,
		},
		{
			name:   "skip mode",
			source: stubSource{channels: []string{"@a"}, skip: true},
			oracle: &stubOracle{err: errors.New("must not be called")},
			want:   VerdictMember,
		},
		{
			name:   "member of all",
			source: stubSource{channels: []string{"@a", "@b"}},
			oracle: &stubOracle{members: map[string]bool{"@a": true, "@b": true}},
			want:   VerdictMember,
		},
		{
			name:   "missing one",
			source: stubSource{channels: []string{"@a", "@b"}},
			oracle: &stubOracle{members: map[string]bool{"@a": true}},
			want:   VerdictNotMember,
		},
		{
			name:   "oracle error",
			source: stubSource{channels: []string{"@a"}},
			oracle: &stubOracle{err: errors.New("bad gateway")},
			want:   VerdictUnknown,
		},
		{
			name:   "oracle timeout",
			source: stubSource{channels: []string{"@a"}},
			oracle: &stubOracle{members: map[string]bool{"@a": true}, delay: time.Second},
			want:   VerdictUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(tt.oracle, tt.source, 50*time.Millisecond, zap.NewNop())

			assert.Equal(t, tt.want, c.Check(context.Background(), 1))
			assert.Equal(t, tt.want == VerdictMember, c.Verified(context.Background(), 1))
		})
	}
}

type stubMemberGetter struct {
	got    tgbotapi.GetChatMemberConfig
	member tgbotapi.ChatMember
	err    error
}

func (s *stubMemberGetter) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	s.got = config
	return s.member, s.err
}

func TestTelegramOracle_IsMember(t *testing.T) {
	tests := []struct {
		status   string
		isMember bool
		want     bool
	}{
		{status: "creator", want: true},
		{status: "administrator", want: true},
		{status: "member", want: true},
		{status: "restricted", isMember: true, want: true},
		{status: "restricted", want: false},
		{status: "left", want: false},
		{status: "kicked", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			api := &stubMemberGetter{member: tgbotapi.ChatMember{Status: tt.status, IsMember: tt.isMember}}
			o := NewTelegramOracle(api)

			ok, err := o.IsMember(context.Background(), 42, "@news")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, "@news", api.got.SuperGroupUsername)
			assert.Equal(t, int64(42), api.got.UserID)
		})
	}
}

func TestTelegramOracle_NumericChannel(t *testing.T) {
	api := &stubMemberGetter{member: tgbotapi.ChatMember{Status: "member"}}
	o := NewTelegramOracle(api)

	_, err := o.IsMember(context.Background(), 42, "-1001234567890")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), api.got.ChatID)
	assert.Empty(t, api.got.SuperGroupUsername)
}

func TestTelegramOracle_Error(t *testing.T) {
	o := NewTelegramOracle(&stubMemberGetter{err: errors.New("chat not found")})

	_, err := o.IsMember(context.Background(), 42, "@news")
	require.Error(t, err)
}
