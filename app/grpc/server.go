package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-school-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-school-payments/app/service"
	"github.com/vibast-solutions/ms-go-school-payments/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const TransactionsServiceName = "schoolpayments.v1.Transactions"

// TransactionsServer exposes the reporting queries to internal callers. The
// messages are well-known types so no generated code is needed.
type TransactionsServer interface {
	GetTransactionStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ListSchoolTransactions(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

type Server struct {
	transactionService *service.TransactionService
}

func NewServer(transactionService *service.TransactionService) *Server {
	return &Server{transactionService: transactionService}
}

func (s *Server) GetTransactionStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	in := &types.TransactionStatusRequest{CustomOrderID: req.GetValue()}
	if err := in.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.transactionService.GetStatusByCustomOrderID(ctx, in.GetCustomOrderID())
	if err != nil {
		if errors.Is(err, service.ErrOrderStatusNotFound) {
			return nil, status.Error(codes.NotFound, "transaction not found")
		}
		loggerWithContext(ctx).WithError(err).Error("Get transaction status failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return toStruct(mapper.TransactionStatusToResponse("Transaction status retrieved successfully.", item))
}

func (s *Server) ListSchoolTransactions(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	in := &types.SchoolTransactionsRequest{SchoolID: req.GetValue()}
	if err := in.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	items, err := s.transactionService.ListTransactionsBySchool(ctx, in.GetSchoolID())
	if err != nil {
		loggerWithContext(ctx).WithError(err).Error("List school transactions failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return toStruct(&types.TransactionsResponse{
		Message: fmt.Sprintf("Transactions for school ID %s retrieved successfully.", in.GetSchoolID()),
		Data:    mapper.TransactionsToResponse(items),
	})
}

// toStruct renders v with the same field names the HTTP API uses.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

func RegisterTransactionsServer(registrar grpc.ServiceRegistrar, srv TransactionsServer) {
	registrar.RegisterService(&transactionsServiceDesc, srv)
}

var transactionsServiceDesc = grpc.ServiceDesc{
	ServiceName: TransactionsServiceName,
	HandlerType: (*TransactionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetTransactionStatus", Handler: getTransactionStatusHandler},
		{MethodName: "ListSchoolTransactions", Handler: listSchoolTransactionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "schoolpayments/v1/transactions.proto",
}

func getTransactionStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransactionsServer).GetTransactionStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + TransactionsServiceName + "/GetTransactionStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TransactionsServer).GetTransactionStatus(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listSchoolTransactionsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransactionsServer).ListSchoolTransactions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + TransactionsServiceName + "/ListSchoolTransactions"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TransactionsServer).ListSchoolTransactions(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
