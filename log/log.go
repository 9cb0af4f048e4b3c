// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package log is the structured logger every component logs through. It
// mirrors the teacher's per-module logger idiom
// (log.NewModuleLogger(log.<Module>) then logger.Info("msg", "k", v, ...))
// but is backed by go.uber.org/zap's SugaredLogger instead of log15.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module identifies the subsystem a logger belongs to, for the "module"
// field every log line carries.
type Module string

const (
	Common             Module = "common"
	MasternodeRegistry Module = "masternode"
	ConsensusScheduler Module = "consensus/scheduler"
	ConsensusSigner    Module = "consensus/signer"
	ConsensusQuorum    Module = "consensus/quorum"
	ConsensusFinality  Module = "consensus/finality"
	Settlement         Module = "settlement"
	CommitDB           Module = "commitdb"
	SyncGate           Module = "syncgate"
	StorageDatabase    Module = "storage/database"
	Wire               Module = "wire"
	NodeCmd            Module = "node"
)

// Logger is the interface every component depends on. Each call takes a
// message and an even number of key/value pairs, never a format string.
type Logger interface {
	Trace(msg string, kv ...interface{})
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	// NewWith returns a child logger with the given key/value pairs attached
	// to every subsequent line.
	NewWith(kv ...interface{}) Logger
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l *zapLogger) Trace(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

func (l *zapLogger) NewWith(kv ...interface{}) Logger {
	return &zapLogger{s: l.s.With(kv...)}
}

var (
	once      sync.Once
	base      *zap.SugaredLogger
	verbosity zapcore.Level = zapcore.InfoLevel
)

// SetVerbosity controls the minimum level emitted by every module logger
// created afterward. Call before NewModuleLogger from cmd/hunode's flag
// parsing, mirroring the teacher's --verbosity flag.
func SetVerbosity(level string) {
	_ = verbosity.UnmarshalText([]byte(level))
}

func baseLogger() *zap.SugaredLogger {
	once.Do(func() {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), verbosity)
		base = zap.New(core).Sugar()
	})
	return base
}

// NewModuleLogger returns the package-level logger for a module, tagged
// with its name. Each package assigns this once to a package-level
// `var logger = log.NewModuleLogger(log.X)`.
func NewModuleLogger(m Module) Logger {
	return &zapLogger{s: baseLogger().With("module", string(m))}
}

// New is a one-off logger tagged with arbitrary key/value pairs, used where
// no fixed module applies (e.g. one levelDB instance per on-disk store).
func New(kv ...interface{}) Logger {
	return &zapLogger{s: baseLogger().With(kv...)}
}
