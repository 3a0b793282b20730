package lms

import "time"

// SetNowFunc freezes the service clock in tests.
func (svc *Service) SetNowFunc(now func() time.Time) { svc.nowFunc = now }
