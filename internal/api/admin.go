package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/idopont/booking/internal/model"
	"github.com/idopont/booking/internal/registry"
)

func createUserHandler(reg *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		role := model.Role(req.Role)
		switch role {
		case model.RoleAdmin, model.RoleDoctor, model.RolePatient:
		default:
			writeError(w, http.StatusBadRequest, "invalid_role", "role must be one of ADMIN, DOCTOR, PATIENT")
			return
		}

		u, err := reg.CreateUser(r.Context(), req.Email, req.Password, req.Name, req.Phone, role)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, UserResponse{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			Phone:     u.Phone,
			Role:      string(u.Role),
			Active:    u.Active,
			CreatedAt: u.CreatedAt,
		})
	}
}

func deleteUserHandler(reg *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
			return
		}

		if err := reg.DeleteUser(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createPatientHandler(reg *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		p, err := reg.CreatePatient(r.Context(), userID, req.HealthID, req.Note)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, PatientResponse{
			ID:       p.ID,
			UserID:   p.UserID,
			HealthID: p.HealthID,
			Note:     p.Note,
		})
	}
}

func createDoctorHandler(reg *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a valid UUID")
			return
		}

		d, err := reg.CreateDoctor(r.Context(), userID, req.LicenseNumber, req.Bio)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, DoctorResponse{
			ID:            d.ID,
			UserID:        d.UserID,
			LicenseNumber: d.LicenseNumber,
			Bio:           d.Bio,
		})
	}
}

func createClinicHandler(reg *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateClinicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		c, err := reg.CreateClinic(r.Context(), req.Name, req.Address, req.FloorRoom)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ClinicResponse{
			ID:        c.ID,
			Name:      c.Name,
			Address:   c.Address,
			FloorRoom: c.FloorRoom,
		})
	}
}

func createServiceHandler(reg *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateServiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		svc, err := reg.CreateService(r.Context(), req.Name, req.BaseDurationMin, req.BasePrice)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ServiceResponse{
			ID:              svc.ID,
			Name:            svc.Name,
			BaseDurationMin: svc.BaseDurationMin,
			BasePrice:       svc.BasePrice,
		})
	}
}

func deleteServiceHandler(reg *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "id must be a valid UUID")
			return
		}

		if err := reg.DeleteService(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setDoctorServiceHandler(reg *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(chi.URLParam(r, "serviceID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "serviceID must be a valid UUID")
			return
		}

		var req SetDoctorServiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ds, err := reg.SetDoctorService(r.Context(), doctorID, serviceID, req.Price, req.DurationMin)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, DoctorServiceResponse{
			DoctorID:    ds.DoctorID,
			ServiceID:   ds.ServiceID,
			Price:       ds.Price,
			DurationMin: ds.DurationMin,
		})
	}
}

func createSlotHandler(reg *registry.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var clinicID *uuid.UUID
		if req.ClinicID != nil {
			id, err := uuid.Parse(*req.ClinicID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
				return
			}
			clinicID = &id
		}

		slot, err := reg.CreateSlot(r.Context(), doctorID, clinicID, req.StartsAt, req.EndsAt)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSlotResponse(*slot))
	}
}
