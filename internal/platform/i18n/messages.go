// Package i18n renders customer-facing messages in the caller's language.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text doubles as the lookup key.
const (
	MsgCartIDMissing         = `Required parameter "cart_id" is missing`
	MsgCartNotFound          = `Could not find a cart with ID "%s"`
	MsgCartInactive          = `The cart "%s" is no longer active.`
	MsgPaymentCodeMissing    = `Required parameter "code" for "payment_method" is missing.`
	MsgPaymentCodeNotCloned  = `Required parameter "code" for "payment_method" to clone is missing.`
	MsgInvalidEmail          = `Invalid email format`
	MsgLoggedInNotAllowed    = `The request is not allowed for logged in customers`
	MsgCartWithoutProducts   = `Cart does not contain products.`
	MsgCartNotSaved          = `The cart couldn't be saved.`
	MsgCouponInvalid         = `The coupon code "%s" is not valid.`
	MsgGuestCheckoutDisabled = `Guest checkout is not allowed.`
	MsgInvalidSortField      = `Sort field "%s" is not supported.`
	MsgShippingAddressUnset  = `The shipping address is missing. Set the address and try again.`
	MsgProductNotFound       = `Could not find a product with SKU "%s"`
	MsgInvalidQuantity       = `The quantity of "%s" must be greater than 0.`
)

var japanese = map[string]string{
	MsgCartIDMissing:         `必須パラメータ "cart_id" が指定されていません`,
	MsgCartNotFound:          `ID "%s" のカートが見つかりません`,
	MsgCartInactive:          `カート "%s" は既に無効です。`,
	MsgPaymentCodeMissing:    `"payment_method" の必須パラメータ "code" が指定されていません。`,
	MsgPaymentCodeNotCloned:  `複製する "payment_method" の必須パラメータ "code" が指定されていません。`,
	MsgInvalidEmail:          `メールアドレスの形式が正しくありません`,
	MsgLoggedInNotAllowed:    `ログイン中のお客様はこの操作を行えません`,
	MsgCartWithoutProducts:   `カートに商品が入っていません。`,
	MsgCartNotSaved:          `カートを保存できませんでした。`,
	MsgCouponInvalid:         `クーポンコード "%s" は無効です。`,
	MsgGuestCheckoutDisabled: `ゲスト購入は許可されていません。`,
	MsgInvalidSortField:      `並び替え項目 "%s" には対応していません。`,
	MsgShippingAddressUnset:  `配送先住所が設定されていません。住所を設定してから再度お試しください。`,
	MsgProductNotFound:       `SKU "%s" の商品が見つかりません`,
	MsgInvalidQuantity:       `"%s" の数量は 0 より大きくしてください。`,
}

var (
	supported = []language.Tag{language.English, language.Japanese}
	matcher   = language.NewMatcher(supported)
	messages  = newCatalog()
)

func newCatalog() catalog.Catalog {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range japanese {
		_ = builder.SetString(language.English, key, key)
		_ = builder.SetString(language.Japanese, key, text)
	}
	return builder
}

// Tag resolves a locale string such as "ja-JP" to a supported language.
func Tag(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return language.English
	}
	_, index, confidence := matcher.Match(language.Make(locale))
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}

// Sprintf formats the message identified by key for the given locale.
func Sprintf(locale, key string, args ...any) string {
	printer := message.NewPrinter(Tag(locale), message.Catalog(messages))
	return printer.Sprintf(key, args...)
}
