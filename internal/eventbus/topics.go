package eventbus

// Event types published by octogrowl components.
const (
	TypeRegistered         = "growl.registered"
	TypeRegistrationFailed = "growl.registration_failed"
	TypeDelivered          = "growl.delivered"
	TypeDeliveryFailed     = "growl.delivery_failed"
	TypeDispatchDropped    = "growl.dispatch_dropped"
	TypeConfigReloaded     = "config.reloaded"
)

// Task engine lifecycle.
const (
	TypeTaskFinished = "task.finished"
	TypeTaskFailed   = "task.failed"
	TypeTaskDropped  = "task.dropped"
	TypeTaskSkipped  = "task.skipped"
)
