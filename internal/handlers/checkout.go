package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bikestore/internal/cart"
	"bikestore/internal/checkout"
	"bikestore/internal/models"
)

// checkoutTimeout covers stock lookup, order insert and the provider call.
const checkoutTimeout = 20 * time.Second

type Checkouter interface {
	Checkout(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

type checkoutItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type checkoutCustomerRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required,max=30"`
	DNI       string `json:"dni" binding:"omitempty,numeric,min=7,max=8"`
}

type checkoutShippingRequest struct {
	Address  string `json:"address" binding:"required,max=200"`
	Number   string `json:"number" binding:"max=20"`
	Floor    string `json:"floor" binding:"max=20"`
	City     string `json:"city" binding:"required,max=100"`
	Province string `json:"province" binding:"required,max=100"`
	ZipCode  string `json:"zipCode" binding:"required,max=10"`
}

type CheckoutRequest struct {
	Items         []checkoutItemRequest   `json:"items" binding:"required,min=1,dive"`
	Customer      checkoutCustomerRequest `json:"customer"`
	Shipping      checkoutShippingRequest `json:"shipping"`
	PaymentMethod string                  `json:"paymentMethod" binding:"required,paymentmethod"`
	Notes         string                  `json:"notes" binding:"max=500"`
}

func (r CheckoutRequest) toCheckout() checkout.Request {
	lines := make([]cart.Line, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, cart.Line{ProductID: strings.TrimSpace(item.ProductID), Quantity: item.Quantity})
	}
	return checkout.Request{
		Items: lines,
		Customer: checkout.Customer{
			FirstName: strings.TrimSpace(r.Customer.FirstName),
			LastName:  strings.TrimSpace(r.Customer.LastName),
			Email:     strings.ToLower(strings.TrimSpace(r.Customer.Email)),
			Phone:     strings.TrimSpace(r.Customer.Phone),
			DNI:       strings.TrimSpace(r.Customer.DNI),
		},
		Shipping: checkout.Shipping{
			Address:  strings.TrimSpace(r.Shipping.Address),
			Number:   strings.TrimSpace(r.Shipping.Number),
			Floor:    strings.TrimSpace(r.Shipping.Floor),
			City:     strings.TrimSpace(r.Shipping.City),
			Province: strings.TrimSpace(r.Shipping.Province),
			ZipCode:  strings.TrimSpace(r.Shipping.ZipCode),
		},
		PaymentMethod: r.PaymentMethod,
		Notes:         strings.TrimSpace(r.Notes),
	}
}

// RegisterValidators installs the custom binding tags used by request DTOs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return v.RegisterValidation("paymentmethod", func(fl validator.FieldLevel) bool {
		method := fl.Field().String()
		return method == models.PaymentMethodMercadoPago || models.IsOfflinePaymentMethod(method)
	})
}

func bindingFailure(err error) checkout.Result {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "paymentmethod" {
				return checkout.Result{Error: checkout.ErrorInvalidPayment, Message: "unsupported payment method"}
			}
		}
	}
	return checkout.Result{Error: checkout.ErrorInvalidCart, Message: "invalid checkout request"}
}

// checkoutStatus maps a checkout outcome to its HTTP status.
func checkoutStatus(result checkout.Result) int {
	switch {
	case result.Success:
		return http.StatusCreated
	case result.Error == checkout.ErrorInsufficientStock:
		return http.StatusConflict
	case result.Error == checkout.ErrorOrderCreationFailed:
		return http.StatusInternalServerError
	case strings.HasPrefix(result.Error, "mercadopago_"):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func Checkout(orchestrator Checkouter) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /checkout"
		defer handlePanic(c, route)

		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Printf("[%s] invalid body: %v", route, err)
			c.AbortWithStatusJSON(http.StatusBadRequest, bindingFailure(err))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), checkoutTimeout)
		defer cancel()

		result, err := orchestrator.Checkout(ctx, req.toCheckout())
		if err != nil {
			log.Printf("[%s] checkout failed: %v", route, err)
			respondWithError(c, http.StatusServiceUnavailable, route, "catalog unavailable")
			return
		}

		log.Printf("[%s] success=%t order=%s error=%s", route, result.Success, result.OrderNumber, result.Error)
		c.JSON(checkoutStatus(result), result)
	}
}
