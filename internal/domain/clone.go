package domain

// CloneStage names the last pipeline stage a clone reached.
type CloneStage string

const (
	CloneStageCreated            CloneStage = "created"
	CloneStageItemsCopied        CloneStage = "items_copied"
	CloneStageShippingAddressSet CloneStage = "shipping_address_set"
	CloneStageBillingAddressSet  CloneStage = "billing_address_set"
	CloneStageShippingMethodSet  CloneStage = "shipping_method_set"
	CloneStagePaymentMethodSet   CloneStage = "payment_method_set"
	CloneStageEmailSet           CloneStage = "email_set"
	CloneStageCouponApplied      CloneStage = "coupon_applied"
	CloneStageDone               CloneStage = "done"
)

// CloneResult is returned to the caller once a clone completes.
type CloneResult struct {
	CartID       string
	SourceCartID string
	Stage        CloneStage
	ItemErrors   []LineItemError
}
