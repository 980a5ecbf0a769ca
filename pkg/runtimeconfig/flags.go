/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package runtimeconfig

import (
	"time"

	"github.com/spf13/pflag"
)

// BindFlags registers one pflag per §6 config key onto flags, following the flat, SortFlags-false
// style of scaffold.go/clm's cobra commands. Call Validate after flags.Parse() to resolve defaults
// and check enumerated values.
func (c *Config) BindFlags(flags *pflag.FlagSet) {
	c.DeployRetries = flags.Int("deploy-retries", 5, "Apply-conflict retry budget")
	c.RetryBackoffBaseSeconds = flags.Float64("retry-backoff-base-seconds", 1.0, "Base for linear backoff between apply retries")
	c.DeployUnprocessablePutFallback = flags.Bool("deploy-unprocessable-put-fallback", false, "Fall back to PUT when a PATCH is rejected as unprocessable (422)")
	flags.StringVar(&c.WatchNamespace, "watch-namespace", "", `Comma-separated namespaces to watch, or "*" for all namespaces`)
	flags.StringVar((*string)(&c.WatchManager), "watch-manager", string(WatchManagerPython), "External watch-manager variant (python|ansible)")
	c.DryRun = flags.Bool("dry-run", false, "Use the in-memory cluster adapter instead of a real cluster")
	flags.StringSliceVar(&c.ClusterPassthroughAnnotations, "cluster-passthrough-annotations", nil, "Annotation keys the adapter preserves verbatim from live state")

	processContext := flags.String("python-watch-manager-process-context", string(ProcessContextFork), "Worker isolation model (spawn|fork)")
	c.PythonWatchManager.ProcessContext = (*ProcessContext)(processContext)
	c.PythonWatchManager.MaxConcurrentReconciles = flags.Int("python-watch-manager-max-concurrent-reconciles", 0, "Worker pool size; 0 defaults to the CPU count")
	flags.DurationVar(&c.PythonWatchManager.ReconcilePeriod, "python-watch-manager-reconcile-period", 0, "Periodic re-reconcile interval; 0 disables")
	c.PythonWatchManager.WatchDependentResources = flags.Bool("python-watch-manager-watch-dependent-resources", false, "Watch Components' own rendered resources for drift")
	c.PythonWatchManager.SubsystemRollout = flags.Bool("python-watch-manager-subsystem-rollout", false, "Recursively schedule Components that are themselves watched CRs")
	flags.StringVar(&c.PythonWatchManager.HeartbeatFile, "python-watch-manager-heartbeat-file", "", "Path to the liveness heartbeat file")
	flags.DurationVar(&c.PythonWatchManager.HeartbeatPeriod, "python-watch-manager-heartbeat-period", time.Minute, "Heartbeat write period; must be >= 1s")

	lockType := flags.String("python-watch-manager-lock-type", "dryrun", "Leader-election strategy (leader-for-life|leader-with-lease|annotation|dryrun)")
	c.PythonWatchManager.Lock.Type = lockType
	flags.StringVar(&c.PythonWatchManager.Lock.Name, "python-watch-manager-lock-name", "", "Lock object/annotation-set name")
	flags.StringVar(&c.PythonWatchManager.Lock.Namespace, "python-watch-manager-lock-namespace", "", "Namespace holding the lock object; defaults to the operator's own namespace")
	flags.DurationVar(&c.PythonWatchManager.Lock.PollTime, "python-watch-manager-lock-poll-time", 30*time.Second, "How often the background renewal loop re-attempts acquisition")
	flags.DurationVar(&c.PythonWatchManager.Lock.Duration, "python-watch-manager-lock-duration", 15*time.Second, "How long a held lock remains valid without renewal")

	c.PythonWatchManager.WatchRetryCount = flags.Int("python-watch-manager-watch-retry-count", 5, "Watch-stream reconnect retry budget")
	flags.DurationVar(&c.PythonWatchManager.WatchRetryDelay, "python-watch-manager-watch-retry-delay", time.Second, "Delay between watch-stream reconnect attempts")
	flags.StringVar(&c.PythonWatchManager.Filter, "python-watch-manager-filter", "", "Built-in filter pipeline name (default|annotation|user-annotation)")
}
