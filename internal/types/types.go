// README: Shared identifiers, coordinates and the service-type enum.
package types

type ID string

type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point lies within WGS84 bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

type ServiceType string

const (
	ServiceTow              ServiceType = "TOW"
	ServiceLockout          ServiceType = "LOCKOUT"
	ServiceBatteryJump      ServiceType = "BATTERY_JUMP"
	ServiceFuelDelivery     ServiceType = "FUEL_DELIVERY"
	ServiceTireChange       ServiceType = "TIRE_CHANGE"
	ServiceJumpStart        ServiceType = "JUMP_START"
	ServiceElectricCharging ServiceType = "ELECTRIC_CHARGING"
	ServiceCarRepair        ServiceType = "CAR_REPAIR"
	ServiceCustom           ServiceType = "CUSTOM_SERVICE"
)

var ServiceTypes = []ServiceType{
	ServiceTow,
	ServiceLockout,
	ServiceBatteryJump,
	ServiceFuelDelivery,
	ServiceTireChange,
	ServiceJumpStart,
	ServiceElectricCharging,
	ServiceCarRepair,
	ServiceCustom,
}

func (s ServiceType) Valid() bool {
	for _, t := range ServiceTypes {
		if t == s {
			return true
		}
	}
	return false
}
