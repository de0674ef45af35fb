package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"admission-gateway/middleware/gate"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 100 * time.Millisecond

// Manager guarda as settings vigentes do gate e recarrega CONFIG_FILE quando
// ele muda. Sem CONFIG_FILE, serve só os valores do ambiente.
type Manager struct {
	mu        sync.RWMutex
	base      Config
	settings  gate.Settings
	lastError error
	reloads   int

	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	done    chan struct{}
}

// NewManager carrega o arquivo (se configurado) e começa a observá-lo.
// Erro na carga inicial é fatal; erros em recargas só ficam em LastError.
func NewManager(base Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		base:     base,
		settings: settingsFrom(base, nil),
		path:     base.ConfigFile,
		logger:   logger,
		done:     make(chan struct{}),
	}
	if m.path == "" {
		return m, nil
	}

	if err := m.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// observa o diretório: editores e ConfigMaps trocam o arquivo por rename
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	m.watcher = watcher

	go m.watch()
	return m, nil
}

// Gate implementa gate.SettingsSource.
func (m *Manager) Gate() gate.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// LastError devolve o erro da última recarga, ou nil se ela deu certo.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// Reloads conta as cargas bem-sucedidas do arquivo.
func (m *Manager) Reloads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reloads
}

func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	err := m.watcher.Close()
	<-m.done
	return err
}

func (m *Manager) reload() error {
	f, err := LoadGateFile(m.path)
	if err != nil {
		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()
		return fmt.Errorf("failed to load config: %w", err)
	}

	s := settingsFrom(m.base, f)

	m.mu.Lock()
	m.settings = s
	m.lastError = nil
	m.reloads++
	m.mu.Unlock()

	m.logger.Info("gate settings loaded",
		zap.String("file", m.path),
		zap.String("canonicalHost", s.CanonicalHost),
		zap.String("customAnalyticsURL", s.CustomAnalyticsURL),
	)
	return nil
}

func (m *Manager) watch() {
	defer close(m.done)

	target := filepath.Clean(m.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := m.reload(); err != nil {
					m.logger.Warn("config reload failed, keeping previous settings", zap.Error(err))
				}
			})

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.mu.Lock()
			m.lastError = fmt.Errorf("watcher error: %w", err)
			m.mu.Unlock()
			m.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func settingsFrom(base Config, f *GateFile) gate.Settings {
	s := gate.Settings{
		Production:         base.Production(),
		CanonicalHost:      base.CanonicalHost,
		CustomAnalyticsURL: base.CustomAnalyticsURL,
	}
	if f == nil {
		return s
	}
	if f.CanonicalHost != "" {
		s.CanonicalHost = f.CanonicalHost
	}
	if f.CustomAnalyticsURL != "" {
		s.CustomAnalyticsURL = f.CustomAnalyticsURL
	}
	return s
}
