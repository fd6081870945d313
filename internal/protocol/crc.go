package protocol

// CRC-16-CCITT with polynomial 0x1021, zero initial value and no final
// XOR. This must byte-exactly reproduce the vendor checksum: the device
// silently drops any frame whose trailer does not match.

const crcPolynomial = 0x1021

var crcTable = makeCRCTable()

// makeCRCTable builds the 256-entry lookup table: entry i is byte i
// shifted into the top of a 16-bit register with the polynomial applied
// bit by bit.
func makeCRCTable() [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CRC16 computes the checksum over data.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		idx := byte(crc>>8) ^ b
		crc = (crc << 8) ^ crcTable[idx]
	}
	return crc
}
