/*
Copyright 2023.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package operator gives Controller authors a process-bootstrap contract analogous to the
// teacher's original ctrl.Manager-based Operator interface, retargeted at this module's
// controller-runtime-free dispatcher/scheduler stack (§4.5/§4.6): Setup now wires Controllers into
// a Runtime instead of registering them on a manager.
package operator

import (
	"github.com/spf13/pflag"

	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Operator is the contract a Controller author's process-level type implements: scheme/flag setup
// runs once at startup, then Setup registers every Controller this operator owns onto rt.
type Operator interface {
	GetName() string
	InitScheme(scheme *runtime.Scheme)
	InitFlags(flags *pflag.FlagSet)
	ValidateFlags() error
	GetUncacheableTypes() []client.Object
	// Setup registers this Operator's Controllers (and their watch requests) onto rt. Called once,
	// after flags are parsed and validated and before rt.Run.
	Setup(rt *Runtime) error
}
