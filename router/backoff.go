// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package router

import (
	"math"
	"time"

	"github.com/agentmail-dev/agentmail/config"
)

// nextDelay computes next_try_at's offset for the given attempt count:
// min(cap, base * multiplier^attempts).
func nextDelay(attempts int, policy config.RetryPolicyConfig) time.Duration {
	base := policy.InitialDelay
	if base <= 0 {
		base = 5 * time.Second
	}
	ceiling := policy.MaxDelay
	if ceiling <= 0 {
		ceiling = 300 * time.Second
	}
	mult := policy.Multiplier
	if mult <= 0 {
		mult = 2.0
	}

	scaled := float64(base) * math.Pow(mult, float64(attempts))
	if scaled > float64(ceiling) || math.IsInf(scaled, 1) {
		return ceiling
	}
	return time.Duration(scaled)
}

func maxAttempts(policy config.RetryPolicyConfig) int {
	if policy.MaxAttempts <= 0 {
		return 20
	}
	return policy.MaxAttempts
}
