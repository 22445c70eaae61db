// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/cubefs/cubefs/blobstore/common/config"
	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cubefs/tabletnode/consensus"
	"github.com/cubefs/tabletnode/localenv"
	"github.com/cubefs/tabletnode/metrics"
	"github.com/cubefs/tabletnode/tablet"
)

// Config is this binary's on-disk configuration, loaded the same way
// the teacher's own cmd.go loads server.Config: one JSON file parsed
// by common/config.
type Config struct {
	HttpBindPort uint32    `json:"http_bind_port"`
	LogLevel     log.Level `json:"log_level"`

	RootDir  string `json:"root_dir"`
	TabletID string `json:"tablet_id"`
	PeerUUID string `json:"peer_uuid"`

	ForceFsync                       bool    `json:"cmeta_force_fsync"`
	FsyncOverrideOnXFS               bool    `json:"cmeta_fsync_override_on_xfs"`
	LogForceFsyncAll                 bool    `json:"log_force_fsync_all"`
	FaultCrashBeforeFlushProbability float64 `json:"fault_crash_before_cmeta_flush"`

	MaxConcurrentCompactions uint32 `json:"max_concurrent_compactions"`
	CompactionMBPS           int    `json:"compaction_mbps"`
}

func main() {
	config.Init("f", "", "tabletnode.json")

	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatal(errors.Detail(err))
	}
	if cfg.RootDir == "" {
		cfg.RootDir = "./run/tabletnode"
	}
	if cfg.PeerUUID == "" {
		cfg.PeerUUID = uuid.NewString()
		log.Infof("no peer_uuid configured, generated %s for this process", cfg.PeerUUID)
	}
	if cfg.MaxConcurrentCompactions == 0 {
		cfg.MaxConcurrentCompactions = 2
	}
	if cfg.CompactionMBPS == 0 {
		cfg.CompactionMBPS = 64
	}
	log.SetOutputLevel(cfg.LogLevel)
	registerLogLevel()

	flags := consensus.Flags{
		ForceFsync:                       cfg.ForceFsync,
		FsyncOverrideOnXFS:               cfg.FsyncOverrideOnXFS,
		LogForceFsyncAll:                 cfg.LogForceFsyncAll,
		FaultCrashBeforeFlushProbability: cfg.FaultCrashBeforeFlushProbability,
	}
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		log.Fatalf("create root dir %s: %s", cfg.RootDir, err)
	}

	env := localenv.New()
	cm, err := loadOrCreateConsensusMetadata(env, flags, cfg)
	if err != nil {
		log.Fatalf("load or create consensus metadata for tablet %s: %s", cfg.TabletID, err)
	}
	role, term := cm.GetRoleAndTerm()
	log.Infof("tablet %s loaded: role=%s term=%d", cfg.TabletID, role, term)

	surface := tablet.New(cfg.TabletID, noopSnapshots{})
	compactions := tablet.NewCompactionLimiter(cfg.MaxConcurrentCompactions, cfg.CompactionMBPS)
	if _, err := compactions.Swap(context.Background(), surface, nil, nil); err != nil {
		log.Fatalf("install initial rowset tree for tablet %s: %s", cfg.TabletID, err)
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	httpMux.HandleFunc("/compaction/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(compactions.Status())
	})
	httpServer := &http.Server{Addr: ":" + strconv.Itoa(int(cfg.HttpBindPort)), Handler: httpMux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics http server exited: %s", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	<-ch

	httpServer.Close()
}

// noopSnapshots stands in for the MVCC engine (out of scope, §1): this
// binary only demonstrates the swap surface and its compaction gate,
// not transaction visibility.
type noopSnapshots struct{}

func (noopSnapshots) CaptureSnapshot() tablet.MVCCSnapshot { return nil }

func loadOrCreateConsensusMetadata(env consensus.Env, flags consensus.Flags, cfg *Config) (*consensus.ConsensusMetadata, error) {
	cm, err := consensus.Load(env, flags, cfg.RootDir, cfg.TabletID, cfg.PeerUUID)
	if err == nil {
		return cm, nil
	}

	initial := consensus.RaftConfig{
		Peers: []consensus.RaftPeer{
			{PermanentUUID: cfg.PeerUUID, MemberType: consensus.MemberVoter},
		},
	}
	return consensus.Create(env, flags, cfg.RootDir, cfg.TabletID, cfg.PeerUUID, initial, consensus.MinimumTerm, consensus.FlushOnCreate)
}

func registerLogLevel() {
	logLevelPath, logLevelHandler := log.ChangeDefaultLevelHandler()
	profile.HandleFunc(http.MethodPost, logLevelPath, func(c *rpc.Context) {
		logLevelHandler.ServeHTTP(c.Writer, c.Request)
	})
	profile.HandleFunc(http.MethodGet, logLevelPath, func(c *rpc.Context) {
		logLevelHandler.ServeHTTP(c.Writer, c.Request)
	})
}
