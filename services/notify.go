// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package services

import (
	"encoding/binary"

	"github.com/usbarmory/GoTEE-tssi/tssi"
)

// Notify raises the little-endian event mask held in the caller buffer, the
// flags are returned with the caller next monitor call result.
func Notify(w *tssi.Worker) {
	w.Serve(func(req tssi.Request) tssi.Status {
		if len(req.Data) < 4 {
			return tssi.InvalidArgs
		}

		w.Raise(binary.LittleEndian.Uint32(req.Data))

		return tssi.OK
	})
}
