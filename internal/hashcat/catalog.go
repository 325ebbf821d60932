package hashcat

import (
	"strconv"
	"strings"
)

// HashType is one statically known hash mode.
type HashType struct {
	Mode int
	Name string
}

// ModeValue returns the mode as the string form used in option values.
func (h HashType) ModeValue() string {
	return strconv.Itoa(h.Mode)
}

// Catalog is the statically known hash-type set, in presentation order.
var Catalog = []HashType{
	{0, "MD5"},
	{10, "md5($pass.$salt)"},
	{20, "md5($salt.$pass)"},
	{50, "HMAC-MD5 (key = $pass)"},
	{100, "SHA1"},
	{110, "sha1($pass.$salt)"},
	{120, "sha1($salt.$pass)"},
	{130, "sha1(utf16le($pass).$salt)"},
	{150, "HMAC-SHA1 (key = $pass)"},
	{200, "MySQL323"},
	{300, "MySQL4.1/MySQL5"},
	{400, "phpass, WordPress (MD5), Joomla (MD5)"},
	{500, "md5crypt, MD5 (Unix), Cisco-IOS $1$ (MD5)"},
	{600, "BLAKE2b-512"},
	{900, "MD4"},
	{1000, "NTLM"},
	{1100, "Domain Cached Credentials (DCC), MS Cache"},
	{1400, "SHA2-256"},
	{1410, "sha256($pass.$salt)"},
	{1420, "sha256($salt.$pass)"},
	{1450, "HMAC-SHA256 (key = $pass)"},
	{1700, "SHA2-512"},
	{1710, "sha512($pass.$salt)"},
	{1720, "sha512($salt.$pass)"},
	{1800, "sha512crypt $6$, SHA512 (Unix)"},
	{2100, "Domain Cached Credentials 2 (DCC2), MS Cache 2"},
	{2400, "Cisco-PIX MD5"},
	{2410, "Cisco-ASA MD5"},
	{2500, "WPA/WPA2"},
	{3000, "LM"},
	{3200, "bcrypt $2*$, Blowfish (Unix)"},
	{5500, "NetNTLMv1 / NetNTLMv1+ESS"},
	{5600, "NetNTLMv2"},
	{5700, "Cisco-IOS type 4 (SHA256)"},
	{6211, "TrueCrypt RIPEMD160 + XTS 512 bit"},
	{6800, "LastPass + LastPass sniffed"},
	{7100, "macOS v10.8+ (PBKDF2-SHA512)"},
	{7300, "IPMI2 RAKP HMAC-SHA1"},
	{7400, "sha256crypt $5$, SHA256 (Unix)"},
	{7500, "Kerberos 5, etype 23, AS-REQ Pre-Auth"},
	{7900, "Drupal7"},
	{8900, "scrypt"},
	{9200, "Cisco-IOS $8$ (PBKDF2-SHA256)"},
	{9300, "Cisco-IOS $9$ (scrypt)"},
	{9400, "MS Office 2007"},
	{9500, "MS Office 2010"},
	{9600, "MS Office 2013"},
	{10000, "Django (PBKDF2-SHA256)"},
	{10500, "PDF 1.4 - 1.6 (Acrobat 5 - 8)"},
	{10900, "PBKDF2-HMAC-SHA256"},
	{11300, "Bitcoin/Litecoin wallet.dat"},
	{12000, "PBKDF2-HMAC-SHA1"},
	{12100, "PBKDF2-HMAC-SHA512"},
	{13100, "Kerberos 5, etype 23, TGS-REP"},
	{13400, "KeePass 1 (AES/Twofish) and KeePass 2 (AES)"},
	{13600, "WinZip"},
	{14800, "iTunes backup >= 10.0"},
	{15700, "Ethereum Wallet, SCRYPT"},
	{16500, "JWT (JSON Web Token)"},
	{16800, "WPA-PMKID-PBKDF2"},
	{18200, "Kerberos 5, etype 23, AS-REP"},
	{22000, "WPA-PBKDF2-PMKID+EAPOL"},
}

// ByMode returns the catalog entry for a mode id.
func ByMode(mode int) (HashType, bool) {
	for _, h := range Catalog {
		if h.Mode == mode {
			return h, true
		}
	}
	return HashType{}, false
}

// ByModeValue resolves the string form of a mode id.
func ByModeValue(value string) (HashType, bool) {
	mode, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return HashType{}, false
	}
	return ByMode(mode)
}
