package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v2"
)

// ErrInvalidSetting возвращается при попытке установить недопустимое значение настройки.
var ErrInvalidSetting = errors.New("invalid setting value")

// Settings хранит изменяемые во время работы параметры бота.
// Все методы безопасны для конкурентного использования.
type Settings struct {
	mu sync.RWMutex

	adminID           int64
	adminUsername     string
	referralReward    int64
	minimumWithdrawal int64
	channels          []string
	skipCheck         bool

	channelsFile string
}

type channelsDocument struct {
	Channels []string `yaml:"channels"`
}

// NewSettings создаёт хранилище настроек из конфигурации.
// Если задан файл каналов и он существует, список каналов берётся из него.
func NewSettings(cfg *Config) (*Settings, error) {
	s := &Settings{
		adminID:           cfg.AdminID,
		adminUsername:     cfg.AdminUsername,
		referralReward:    cfg.ReferralReward,
		minimumWithdrawal: cfg.MinimumWithdrawal,
		channels:          NormalizeChannels(cfg.SponsorChannels),
		skipCheck:         cfg.SkipSubscriptionCheck,
		channelsFile:      cfg.ChannelsFile,
	}

	if s.channelsFile == "" {
		return s, nil
	}

	data, err := os.ReadFile(s.channelsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read channels file: %w", err)
	}

	var doc channelsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode channels file: %w", err)
	}
	s.channels = NormalizeChannels(doc.Channels)

	return s, nil
}

// AdminID возвращает идентификатор администратора.
func (s *Settings) AdminID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminID
}

// AdminUsername возвращает имя пользователя администратора.
func (s *Settings) AdminUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminUsername
}

// IsAdmin сообщает, является ли пользователь администратором.
func (s *Settings) IsAdmin(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminID != 0 && s.adminID == userID
}

// ReferralReward возвращает размер вознаграждения за реферала.
func (s *Settings) ReferralReward() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.referralReward
}

// MinimumWithdrawal возвращает минимальную сумму вывода.
func (s *Settings) MinimumWithdrawal() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minimumWithdrawal
}

// SkipCheck сообщает, отключена ли проверка подписки.
func (s *Settings) SkipCheck() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipCheck
}

// SponsorChannels возвращает копию списка спонсорских каналов.
func (s *Settings) SponsorChannels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]string, len(s.channels))
	copy(res, s.channels)
	return res
}

// SetReferralReward изменяет размер вознаграждения за реферала.
func (s *Settings) SetReferralReward(v int64) error {
	if v < 0 {
		return fmt.Errorf("%w: referral reward %d", ErrInvalidSetting, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referralReward = v
	return nil
}

// SetMinimumWithdrawal изменяет минимальную сумму вывода.
func (s *Settings) SetMinimumWithdrawal(v int64) error {
	if v <= 0 {
		return fmt.Errorf("%w: minimum withdrawal %d", ErrInvalidSetting, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minimumWithdrawal = v
	return nil
}

// AddChannel добавляет спонсорский канал. Возвращает false, если канал уже был в списке.
func (s *Settings) AddChannel(channel string) (bool, error) {
	ch := NormalizeChannel(channel)
	if ch == "" {
		return false, fmt.Errorf("%w: empty channel", ErrInvalidSetting)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.channels {
		if c == ch {
			return false, nil
		}
	}

	next := append(append([]string(nil), s.channels...), ch)
	if err := s.persistLocked(next); err != nil {
		return false, err
	}
	s.channels = next
	return true, nil
}

// RemoveChannel удаляет спонсорский канал. Возвращает false, если канала не было в списке.
func (s *Settings) RemoveChannel(channel string) (bool, error) {
	ch := NormalizeChannel(channel)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]string, 0, len(s.channels))
	for _, c := range s.channels {
		if c != ch {
			next = append(next, c)
		}
	}
	if len(next) == len(s.channels) {
		return false, nil
	}

	if err := s.persistLocked(next); err != nil {
		return false, err
	}
	s.channels = next
	return true, nil
}

// ClearChannels удаляет все спонсорские каналы.
func (s *Settings) ClearChannels() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistLocked([]string{}); err != nil {
		return err
	}
	s.channels = nil
	return nil
}

func (s *Settings) persistLocked(channels []string) error {
	if s.channelsFile == "" {
		return nil
	}

	data, err := yaml.Marshal(channelsDocument{Channels: channels})
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.channelsFile), 0o755); err != nil {
		return fmt.Errorf("create channels dir: %w", err)
	}

	tmp := s.channelsFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write channels file: %w", err)
	}
	if err := os.Rename(tmp, s.channelsFile); err != nil {
		return fmt.Errorf("replace channels file: %w", err)
	}

	return nil
}
