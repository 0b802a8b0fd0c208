// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regmap

type table [256]uint16

const ccitt = 0x1021

var ccittTable = makeTable(ccitt)

func makeTable(poly uint16) *table {
	t := &table{}
	for i := uint16(0); i < 256; i++ {
		crc := i << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// CRC16 calculates the CCITT CRC16 (XModem flavor, initial value 0) of d.
func CRC16(d []byte) uint16 {
	crc := uint16(0)
	for _, v := range d {
		crc = ccittTable[byte(crc>>8)^v] ^ (crc << 8)
	}
	return crc
}
