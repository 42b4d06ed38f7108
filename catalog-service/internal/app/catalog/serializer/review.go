package serializer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"storefront/catalog-service/internal/app/catalog/entity"
	"storefront/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxCommentLength = 2000

// ratingLimit отсекает числа, которые не влезают в int, до приведения
var ratingLimit = decimal.NewFromInt(1_000_000)

// Operation - вид записи, для которой валидируется отзыв
type Operation int

const (
	OperationCreate Operation = iota + 1
	OperationUpdate
)

func (o Operation) String() string {
	switch o {
	case OperationCreate:
		return "create"
	case OperationUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// ValidationContext передаётся явно вместо контекста запроса.
// ActingUser == nil - запись делается не от имени пользователя (например, из кода)
type ValidationContext struct {
	Operation  Operation
	ActingUser *entity.UserRef
}

// ReviewSerializer отдаёт отзывы в API и валидирует входящие отзывы
type ReviewSerializer struct {
	products  ProductLookup
	reviews   ReviewLookup
	validator *validator.Validate
}

func NewReviewSerializer(products ProductLookup, reviews ReviewLookup) *ReviewSerializer {
	return &ReviewSerializer{
		products:  products,
		reviews:   reviews,
		validator: validator.New(),
	}
}

func (s *ReviewSerializer) Represent(review *entity.Review) entity.ReviewRepresentation {
	return entity.ReviewRepresentation{
		ID:        review.ID,
		Product:   review.ProductID,
		User:      review.User.String(),
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
}

func (s *ReviewSerializer) RepresentMany(reviews []entity.Review) []entity.ReviewRepresentation {
	result := make([]entity.ReviewRepresentation, 0, len(reviews))
	for i := range reviews {
		result = append(result, s.Represent(&reviews[i]))
	}
	return result
}

// Validate проверяет входящий отзыв и возвращает нормализованные поля.
// Сначала проверяются отдельные поля; проверка на повторный отзыв выполняется
// только если поля корректны, только при создании и только при известном авторе.
// Ошибки хранилища возвращаются как есть, не как ValidationError
func (s *ReviewSerializer) Validate(ctx context.Context, input *entity.ReviewInput, vctx ValidationContext) (*entity.ReviewFields, error) {
	creating := vctx.Operation == OperationCreate
	verr := newValidationError()
	fields := &entity.ReviewFields{}

	if isAbsent(input.Rating) {
		if creating {
			verr.Add("rating", MsgFieldRequired)
		}
	} else if rating, ok := parseInteger(input.Rating); !ok || s.validator.Var(rating, "min=1,max=5") != nil {
		verr.Add("rating", MsgRatingOutOfRange)
	} else {
		fields.Rating = &rating
	}

	switch {
	case input.Product == nil || *input.Product == "":
		if creating || input.Product != nil {
			verr.Add("product", MsgFieldRequired)
		}
	default:
		productID, ok, err := s.resolveProduct(ctx, *input.Product)
		if err != nil {
			return nil, err
		}
		if !ok {
			verr.Add("product", fmt.Sprintf("invalid pk %q - object does not exist.", *input.Product))
		} else {
			fields.ProductID = &productID
		}
	}

	if input.Comment != nil {
		if s.validator.Var(*input.Comment, fmt.Sprintf("max=%d", maxCommentLength)) != nil {
			verr.Add("comment", fmt.Sprintf("ensure this field has no more than %d characters.", maxCommentLength))
		} else {
			comment := *input.Comment
			fields.Comment = &comment
		}
	}

	if verr.HasErrors() {
		recordValidationFailure(verr)
		return nil, verr
	}

	if creating && vctx.ActingUser != nil && fields.ProductID != nil {
		exists, err := s.reviews.ExistsByProductAndUser(ctx, *fields.ProductID, vctx.ActingUser.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing review: %w", err)
		}
		if exists {
			dup := NewDuplicateReviewError()
			recordValidationFailure(dup)
			return nil, dup
		}
	}

	return fields, nil
}

func isAbsent(raw json.RawMessage) bool {
	text := strings.TrimSpace(string(raw))
	return text == "" || text == "null"
}

// parseInteger принимает JSON число или строку с числом, если значение целое (4 и 4.0, но не 4.5)
func parseInteger(raw json.RawMessage) (int, bool) {
	text := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}

	d, err := decimal.NewFromString(text)
	if err != nil || !d.IsInteger() || d.Abs().GreaterThan(ratingLimit) {
		return 0, false
	}
	return int(d.IntPart()), true
}

// resolveProduct: ok == false, если id не UUID или товара нет
func (s *ReviewSerializer) resolveProduct(ctx context.Context, raw string) (uuid.UUID, bool, error) {
	productID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}

	exists, err := s.products.Exists(ctx, productID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to check product: %w", err)
	}

	return productID, exists, nil
}

func recordValidationFailure(verr *ValidationError) {
	for field := range verr.Errors {
		rule := field
		if field == NonFieldErrorsKey {
			rule = "duplicate"
		}
		metrics.ReviewValidationFailures.WithLabelValues(rule).Inc()
	}
}
