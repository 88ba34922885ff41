package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	fimlog "github.com/FimGroup/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	componentField = "component"

	fileRetainDays  = 7
	fileMaxSize     = 50 * 1024 * 1024
	fileMaxPerDay   = 10
	defaultFileName = "dnsreplica"
)

var Log = logrus.New()

func init() {
	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Setup applies the configured level and, when file is not empty, mirrors
// every entry into day/size rotated files named <file>.YYYY-MM-DD.log.
func Setup(level, file string) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return errors.Wrap(err, "parse log level")
		}
		Log.SetLevel(lvl)
	}
	Log.ReplaceHooks(make(logrus.LevelHooks))
	if file == "" {
		return nil
	}
	manager, err := fimlog.NewLoggerManager(FilePrefix(file), fileRetainDays, fileMaxSize, fileMaxPerDay, logrus.TraceLevel, false, false)
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	Log.AddHook(&rotatingFileHook{manager: manager})
	return nil
}

// FilePrefix strips the .log suffix, the rotating writer appends the date
// and extension itself.
func FilePrefix(file string) string {
	prefix := strings.TrimSuffix(file, ".log")
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		prefix += defaultFileName
	}
	return prefix
}

func Component(name string) *logrus.Entry {
	return Log.WithField(componentField, name)
}

// rotatingFileHook forwards entries to one named file logger per component.
type rotatingFileHook struct {
	manager fimlog.LoggerManager
	loggers sync.Map
}

func (h *rotatingFileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *rotatingFileHook) Fire(entry *logrus.Entry) error {
	name := defaultFileName
	if c, ok := entry.Data[componentField]; ok {
		name = fmt.Sprint(c)
	}
	logger := h.logger(name)
	msg := formatEntry(entry)
	switch entry.Level {
	case logrus.TraceLevel:
		logger.Trace(msg)
	case logrus.DebugLevel:
		logger.Debug(msg)
	case logrus.InfoLevel:
		logger.Info(msg)
	case logrus.WarnLevel:
		logger.Warn(msg)
	default:
		logger.Error(msg)
	}
	return nil
}

func (h *rotatingFileHook) logger(name string) fimlog.Logger {
	if l, ok := h.loggers.Load(name); ok {
		return l.(fimlog.Logger)
	}
	l, _ := h.loggers.LoadOrStore(name, h.manager.GetLogger(name))
	return l.(fimlog.Logger)
}

func formatEntry(entry *logrus.Entry) string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != componentField {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return entry.Message
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	return b.String()
}
