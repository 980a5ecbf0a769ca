/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package runtimeconfig

import (
	"strings"

	"github.com/spf13/cast"
)

// envKey maps the §6 dotted config keys onto the uppercase, underscore-joined env var names a
// deployment manifest would set, e.g. python_watch_manager.max_concurrent_reconciles ->
// PYTHON_WATCH_MANAGER_MAX_CONCURRENT_RECONCILES. ApplyEnvOverrides uses spf13/cast for loose
// coercion since env vars arrive as plain strings with no static type.
func envKey(dottedKey string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(dottedKey))
}

// ApplyEnvOverrides overlays environment variables (as resolved by getenv, typically os.LookupEnv)
// onto c, for every python_watch_manager.* key §6 names. Call before Validate so defaulting still
// applies to anything left unset. A malformed numeric, boolean or duration value does not fail:
// spf13/cast coerces it to the type's zero value (0, false, 0s), which replaces the field's previous
// value -- Validate's later checks still catch an override that resolves to a nonsensical value.
func (c *Config) ApplyEnvOverrides(getenv func(string) (string, bool)) {
	str := func(key string) (string, bool) { return getenv(envKey(key)) }

	if v, ok := str("deploy_retries"); ok {
		c.DeployRetries = ref(cast.ToInt(v))
	}
	if v, ok := str("retry_backoff_base_seconds"); ok {
		c.RetryBackoffBaseSeconds = ref(cast.ToFloat64(v))
	}
	if v, ok := str("deploy_unprocessable_put_fallback"); ok {
		c.DeployUnprocessablePutFallback = ref(cast.ToBool(v))
	}
	if v, ok := str("watch_namespace"); ok {
		c.WatchNamespace = v
	}
	if v, ok := str("watch_manager"); ok {
		c.WatchManager = WatchManagerKind(v)
	}
	if v, ok := str("dry_run"); ok {
		c.DryRun = ref(cast.ToBool(v))
	}
	if v, ok := str("cluster_passthrough_annotations"); ok {
		c.ClusterPassthroughAnnotations = strings.Split(v, ",")
	}

	if v, ok := str("python_watch_manager.process_context"); ok {
		c.PythonWatchManager.ProcessContext = ref(ProcessContext(v))
	}
	if v, ok := str("python_watch_manager.max_concurrent_reconciles"); ok {
		c.PythonWatchManager.MaxConcurrentReconciles = ref(cast.ToInt(v))
	}
	if v, ok := str("python_watch_manager.reconcile_period"); ok {
		c.PythonWatchManager.ReconcilePeriod = cast.ToDuration(v)
	}
	if v, ok := str("python_watch_manager.watch_dependent_resources"); ok {
		c.PythonWatchManager.WatchDependentResources = ref(cast.ToBool(v))
	}
	if v, ok := str("python_watch_manager.subsystem_rollout"); ok {
		c.PythonWatchManager.SubsystemRollout = ref(cast.ToBool(v))
	}
	if v, ok := str("python_watch_manager.heartbeat_file"); ok {
		c.PythonWatchManager.HeartbeatFile = v
	}
	if v, ok := str("python_watch_manager.heartbeat_period"); ok {
		c.PythonWatchManager.HeartbeatPeriod = cast.ToDuration(v)
	}
	if v, ok := str("python_watch_manager.lock.type"); ok {
		c.PythonWatchManager.Lock.Type = ref(v)
	}
	if v, ok := str("python_watch_manager.lock.name"); ok {
		c.PythonWatchManager.Lock.Name = v
	}
	if v, ok := str("python_watch_manager.lock.namespace"); ok {
		c.PythonWatchManager.Lock.Namespace = v
	}
	if v, ok := str("python_watch_manager.lock.poll_time"); ok {
		c.PythonWatchManager.Lock.PollTime = cast.ToDuration(v)
	}
	if v, ok := str("python_watch_manager.lock.duration"); ok {
		c.PythonWatchManager.Lock.Duration = cast.ToDuration(v)
	}
	if v, ok := str("python_watch_manager.watch_retry_count"); ok {
		c.PythonWatchManager.WatchRetryCount = ref(cast.ToInt(v))
	}
	if v, ok := str("python_watch_manager.watch_retry_delay"); ok {
		c.PythonWatchManager.WatchRetryDelay = cast.ToDuration(v)
	}
	if v, ok := str("python_watch_manager.filter"); ok {
		c.PythonWatchManager.Filter = v
	}
}
