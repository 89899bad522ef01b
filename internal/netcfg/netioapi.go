//go:build windows

// Package netcfg applies address, route, neighbour-cache, DHCP and MTU
// changes requested by a client session, recording undo information
// for everything reversible.
package netcfg

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modIPHlpAPI = windows.NewLazySystemDLL("iphlpapi.dll")

	procInitializeUnicastIpAddressEntry = modIPHlpAPI.NewProc("InitializeUnicastIpAddressEntry")
	procCreateUnicastIpAddressEntry     = modIPHlpAPI.NewProc("CreateUnicastIpAddressEntry")
	procDeleteUnicastIpAddressEntry     = modIPHlpAPI.NewProc("DeleteUnicastIpAddressEntry")
	procInitializeIpForwardEntry        = modIPHlpAPI.NewProc("InitializeIpForwardEntry")
	procCreateIpForwardEntry2           = modIPHlpAPI.NewProc("CreateIpForwardEntry2")
	procDeleteIpForwardEntry2           = modIPHlpAPI.NewProc("DeleteIpForwardEntry2")
	procInitializeIpInterfaceEntry      = modIPHlpAPI.NewProc("InitializeIpInterfaceEntry")
	procGetIpInterfaceEntry             = modIPHlpAPI.NewProc("GetIpInterfaceEntry")
	procSetIpInterfaceEntry             = modIPHlpAPI.NewProc("SetIpInterfaceEntry")
	procFlushIpNetTable                 = modIPHlpAPI.NewProc("FlushIpNetTable")
	procFlushIpNetTable2                = modIPHlpAPI.NewProc("FlushIpNetTable2")
	procConvertInterfaceAliasToLuid     = modIPHlpAPI.NewProc("ConvertInterfaceAliasToLuid")
	procConvertInterfaceIndexToLuid     = modIPHlpAPI.NewProc("ConvertInterfaceIndexToLuid")
	procConvertInterfaceLuidToGuid      = modIPHlpAPI.NewProc("ConvertInterfaceLuidToGuid")
)

// RawSockaddrInet mirrors SOCKADDR_INET: an address-family tag
// followed by the remainder of the larger sockaddr variant.
type RawSockaddrInet struct {
	Family uint16
	data   [26]byte
}

// SetAddr fills the sockaddr for the given family from 16 raw address
// bytes (IPv4 uses the first four).
func (sa *RawSockaddrInet) SetAddr(family uint16, addr [16]byte) {
	*sa = RawSockaddrInet{Family: family}
	switch family {
	case windows.AF_INET:
		// struct sockaddr_in: port at 0..2 of data, addr at 2..6
		copy(sa.data[2:6], addr[:4])
	case windows.AF_INET6:
		// struct sockaddr_in6: port, flowinfo, then addr at 6..22
		copy(sa.data[6:22], addr[:])
	}
}

// IPAddressPrefix mirrors IP_ADDRESS_PREFIX.
type IPAddressPrefix struct {
	Prefix       RawSockaddrInet
	PrefixLength uint8
	_            [3]byte
}

// MibUnicastIPAddressRow mirrors MIB_UNICASTIPADDRESS_ROW.
type MibUnicastIPAddressRow struct {
	Address            RawSockaddrInet
	InterfaceLUID      uint64
	InterfaceIndex     uint32
	PrefixOrigin       uint32
	SuffixOrigin       uint32
	ValidLifetime      uint32
	PreferredLifetime  uint32
	OnLinkPrefixLength uint8
	SkipAsSource       bool
	DadState           uint32
	ScopeID            uint32
	CreationTimeStamp  int64
}

// MibIPForwardRow2 mirrors MIB_IPFORWARD_ROW2.
type MibIPForwardRow2 struct {
	InterfaceLUID        uint64
	InterfaceIndex       uint32
	DestinationPrefix    IPAddressPrefix
	NextHop              RawSockaddrInet
	SitePrefixLength     uint8
	ValidLifetime        uint32
	PreferredLifetime    uint32
	Metric               uint32
	Protocol             uint32
	Loopback             bool
	AutoconfigureAddress bool
	Publish              bool
	Immortal             bool
	Age                  uint32
	Origin               uint32
}

// MibIPInterfaceRow mirrors MIB_IPINTERFACE_ROW.
type MibIPInterfaceRow struct {
	Family                               uint16
	InterfaceLUID                        uint64
	InterfaceIndex                       uint32
	MaxReassemblySize                    uint32
	InterfaceIdentifier                  uint64
	MinRouterAdvertisementInterval       uint32
	MaxRouterAdvertisementInterval       uint32
	AdvertisingEnabled                   bool
	ForwardingEnabled                    bool
	WeakHostSend                         bool
	WeakHostReceive                      bool
	UseAutomaticMetric                   bool
	UseNeighborUnreachabilityDetection   bool
	ManagedAddressConfigurationSupported bool
	OtherStatefulConfigurationSupported  bool
	AdvertiseDefaultRoute                bool
	RouterDiscoveryBehavior              uint32
	DadTransmits                         uint32
	BaseReachableTime                    uint32
	RetransmitTime                       uint32
	PathMTUDiscoveryTimeout              uint32
	LinkLocalAddressBehavior             uint32
	LinkLocalAddressTimeout              uint32
	ZoneIndices                          [16]uint32
	SitePrefixLength                     uint32
	Metric                               uint32
	NlMtu                                uint32
	Connected                            bool
	SupportsWakeUpPatterns               bool
	SupportsNeighborDiscovery            bool
	SupportsRouterDiscovery              bool
	ReachableTime                        uint32
	TransmitOffload                      uint8
	ReceiveOffload                       uint8
	DisableDefaultRoutes                 bool
}

// routeProtoNetMgmt is MIB_IPPROTO_NETMGMT.
const routeProtoNetMgmt = 3

func callErr(r1 uintptr) error {
	if r1 != 0 {
		return syscall.Errno(r1)
	}
	return nil
}

func initUnicastIPAddressEntry(row *MibUnicastIPAddressRow) {
	procInitializeUnicastIpAddressEntry.Call(uintptr(unsafe.Pointer(row)))
}

func createUnicastIPAddressEntry(row *MibUnicastIPAddressRow) error {
	r1, _, _ := procCreateUnicastIpAddressEntry.Call(uintptr(unsafe.Pointer(row)))
	return callErr(r1)
}

// DeleteAddressRow removes a unicast address row. Also used by the
// session teardown drain.
func DeleteAddressRow(row *MibUnicastIPAddressRow) error {
	r1, _, _ := procDeleteUnicastIpAddressEntry.Call(uintptr(unsafe.Pointer(row)))
	return callErr(r1)
}

func initIPForwardEntry(row *MibIPForwardRow2) {
	procInitializeIpForwardEntry.Call(uintptr(unsafe.Pointer(row)))
}

func createIPForwardEntry2(row *MibIPForwardRow2) error {
	r1, _, _ := procCreateIpForwardEntry2.Call(uintptr(unsafe.Pointer(row)))
	return callErr(r1)
}

// DeleteRouteRow removes a forwarding row. Also used by the session
// teardown drain.
func DeleteRouteRow(row *MibIPForwardRow2) error {
	r1, _, _ := procDeleteIpForwardEntry2.Call(uintptr(unsafe.Pointer(row)))
	return callErr(r1)
}

func initIPInterfaceEntry(row *MibIPInterfaceRow) {
	procInitializeIpInterfaceEntry.Call(uintptr(unsafe.Pointer(row)))
}

// NewIPInterfaceRow returns an initialized row keyed by family and
// interface index, ready for GetIPInterfaceEntry.
func NewIPInterfaceRow(family uint16, ifaceIndex uint32) *MibIPInterfaceRow {
	row := &MibIPInterfaceRow{}
	initIPInterfaceEntry(row)
	row.Family = family
	row.InterfaceIndex = ifaceIndex
	return row
}

// GetIPInterfaceEntry reads the IP interface row selected by the
// family and index/LUID already set in row.
func GetIPInterfaceEntry(row *MibIPInterfaceRow) error {
	r1, _, _ := procGetIpInterfaceEntry.Call(uintptr(unsafe.Pointer(row)))
	return callErr(r1)
}

// SetIPInterfaceEntry writes an IP interface row back.
func SetIPInterfaceEntry(row *MibIPInterfaceRow) error {
	r1, _, _ := procSetIpInterfaceEntry.Call(uintptr(unsafe.Pointer(row)))
	return callErr(r1)
}

func flushIPNetTable(ifIndex uint32) error {
	r1, _, _ := procFlushIpNetTable.Call(uintptr(ifIndex))
	return callErr(r1)
}

func flushIPNetTable2(family uint16, ifIndex uint32) error {
	r1, _, _ := procFlushIpNetTable2.Call(uintptr(family), uintptr(ifIndex))
	return callErr(r1)
}

func convertInterfaceAliasToLUID(alias *uint16, luid *uint64) error {
	r1, _, _ := procConvertInterfaceAliasToLuid.Call(uintptr(unsafe.Pointer(alias)), uintptr(unsafe.Pointer(luid)))
	return callErr(r1)
}

func convertInterfaceIndexToLUID(ifIndex uint32, luid *uint64) error {
	r1, _, _ := procConvertInterfaceIndexToLuid.Call(uintptr(ifIndex), uintptr(unsafe.Pointer(luid)))
	return callErr(r1)
}

func convertInterfaceLUIDToGUID(luid *uint64, guid *windows.GUID) error {
	r1, _, _ := procConvertInterfaceLuidToGuid.Call(uintptr(unsafe.Pointer(luid)), uintptr(unsafe.Pointer(guid)))
	return callErr(r1)
}
