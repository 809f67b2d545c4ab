package payload

import "github.com/sigurn/crc16"

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum returns the CRC-16/MODBUS of the encoded path. It identifies an
// upload in the store and in logs; it is not carried on the wire.
func Checksum(p PathData) uint16 {
	return crc16.Checksum(p.Marshal(), modbusTable)
}
