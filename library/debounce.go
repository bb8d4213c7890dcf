/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package library

import "time"

/*
debounceWindow is the idle window a burst of update_trigger calls must
survive before the coalesced notification fires.
*/
const debounceWindow = 5 * time.Second

/*
debouncer is a one-shot timer re-armed on every call outside a scan, so
a burst of database changes coalesces into a single notification once
things go quiet. Touched only from the library goroutine, so it needs
no lock.
*/
type debouncer struct {
	timer *time.Timer
}

func newDebouncer() *debouncer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return &debouncer{timer: t}
}

/*
C returns the channel that fires when the debounce window elapses.
*/
func (d *debouncer) C() <-chan time.Time {
	return d.timer.C
}

/*
arm (re)starts the 5-second window.
*/
func (d *debouncer) arm() {
	if !d.timer.Stop() {
		select {
		case <-d.timer.C:
		default:
		}
	}
	d.timer.Reset(debounceWindow)
}

/*
disarm cancels a pending fire, e.g. because a scan is starting.
*/
func (d *debouncer) disarm() {
	if !d.timer.Stop() {
		select {
		case <-d.timer.C:
		default:
		}
	}
}
