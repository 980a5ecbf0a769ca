/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package clientfactory

import (
	"time"

	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/sap/component-operator-runtime/pkg/cluster"
)

type Client struct {
	cluster.Client
	withWatch        client.WithWatch
	eventBroadcaster record.EventBroadcaster
	validUntil       time.Time
}
