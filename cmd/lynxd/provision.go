// go-lynx
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-lynx.
//
// go-lynx is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-lynx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-lynx; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"

	"github.com/ZaparooProject/go-lynx/config"
	"go.uber.org/zap"
)

// Provisioner brings the network link up. The lock core only hands over the
// credentials; joining the network is the platform's job.
type Provisioner interface {
	Provision(ctx context.Context, n config.Network) error
}

// logProvisioner is used when the platform manages the link itself.
type logProvisioner struct {
	logger *zap.Logger
}

func (p logProvisioner) Provision(_ context.Context, n config.Network) error {
	p.logger.Info("network credentials loaded", zap.Stringer("network", n))
	return nil
}

func provisionNetwork(ctx context.Context, path string, p Provisioner) error {
	n, err := config.LoadNetwork(path)
	if err != nil {
		return err
	}
	return p.Provision(ctx, n)
}
