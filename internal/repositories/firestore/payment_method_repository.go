package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/cartclone/internal/domain"
	pfirestore "github.com/hanko-field/cartclone/internal/platform/firestore"
	"github.com/hanko-field/cartclone/internal/repositories"
)

const paymentMethodCollectionPattern = "stores/%s/paymentMethods"

// PaymentMethodRepository reads the payment methods configured per store. Each
// method is stored under its code.
type PaymentMethodRepository struct {
	provider *pfirestore.Provider
}

// NewPaymentMethodRepository constructs a Firestore-backed payment method repository.
func NewPaymentMethodRepository(provider *pfirestore.Provider) (*PaymentMethodRepository, error) {
	if provider == nil {
		return nil, errors.New("payment method repository requires firestore provider")
	}
	return &PaymentMethodRepository{provider: provider}, nil
}

// ListActive returns the active payment methods of the store ordered by sort order.
func (r *PaymentMethodRepository) ListActive(ctx context.Context, storeID string) ([]domain.PaymentMethodConfig, error) {
	base, err := r.collection(storeID)
	if err != nil {
		return nil, err
	}
	docs, err := base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("active", "==", true).OrderBy("sortOrder", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	methods := make([]domain.PaymentMethodConfig, 0, len(docs))
	for _, doc := range docs {
		methods = append(methods, doc.Data)
	}
	return methods, nil
}

// FindByCode loads a single payment method of the store.
func (r *PaymentMethodRepository) FindByCode(ctx context.Context, storeID, code string) (domain.PaymentMethodConfig, error) {
	base, err := r.collection(storeID)
	if err != nil {
		return domain.PaymentMethodConfig{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.PaymentMethodConfig{}, pfirestore.WrapError("payment_methods.get", pfirestore.ErrDocumentMissing)
	}
	doc, err := base.Get(ctx, code)
	if err != nil {
		return domain.PaymentMethodConfig{}, err
	}
	return doc.Data, nil
}

func (r *PaymentMethodRepository) collection(storeID string) (*pfirestore.Collection[domain.PaymentMethodConfig], error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("payment method repository not initialised")
	}
	sid := strings.TrimSpace(storeID)
	if sid == "" {
		return nil, errors.New("payment method repository: store id is required")
	}
	path := fmt.Sprintf(paymentMethodCollectionPattern, sid)
	return pfirestore.NewCollection[domain.PaymentMethodConfig](r.provider, path, decodePaymentMethodDocument), nil
}

func decodePaymentMethodDocument(snapshot *firestore.DocumentSnapshot) (domain.PaymentMethodConfig, error) {
	var doc paymentMethodDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.PaymentMethodConfig{}, err
	}
	return doc.toDomain(snapshot.Ref.ID), nil
}

type paymentMethodDocument struct {
	Title      string   `firestore:"title"`
	Active     bool     `firestore:"active"`
	SortOrder  int      `firestore:"sortOrder"`
	Currencies []string `firestore:"currencies,omitempty"`
}

func (d paymentMethodDocument) toDomain(code string) domain.PaymentMethodConfig {
	currencies := make([]string, 0, len(d.Currencies))
	for _, currency := range d.Currencies {
		if trimmed := strings.ToUpper(strings.TrimSpace(currency)); trimmed != "" {
			currencies = append(currencies, trimmed)
		}
	}
	return domain.PaymentMethodConfig{
		Code:       code,
		Title:      strings.TrimSpace(d.Title),
		Active:     d.Active,
		SortOrder:  d.SortOrder,
		Currencies: currencies,
	}
}

// Ensure interface compliance.
var _ repositories.PaymentMethodRepository = (*PaymentMethodRepository)(nil)
